package navmesh

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/stretchr/testify/assert"
)

func groundSquare(minX, minZ, maxX, maxZ, y float32) []d3.Vec3 {
	return []d3.Vec3{
		d3.NewVec3XYZ(minX, y, minZ),
		d3.NewVec3XYZ(maxX, y, minZ),
		d3.NewVec3XYZ(maxX, y, maxZ),
		d3.NewVec3XYZ(minX, y, maxZ),
	}
}

func TestAddPolyLinksSharedEdges(t *testing.T) {
	m := New()
	a := m.AddPoly(groundSquare(0, 0, 10, 10, 0))
	b := m.AddPoly(groundSquare(10, 0, 20, 10, 0))

	pa := m.Poly(a)
	var linked bool
	for _, n := range pa.Neighbors {
		if n == b {
			linked = true
		}
	}
	assert.True(t, linked, "adjacent ground squares should share an edge")
}

func TestAddPolyDoesNotLinkDifferentLevels(t *testing.T) {
	m := New()
	ground := m.AddPoly(groundSquare(0, 0, 10, 10, 0))
	bridge := m.AddPoly(groundSquare(0, 0, 10, 10, 5))

	pg := m.Poly(ground)
	for _, n := range pg.Neighbors {
		assert.NotEqual(t, bridge, n, "polys at the same XZ footprint but different Y must not auto-link")
	}
}

func TestFindNearestPolyPrefersWithinExtents(t *testing.T) {
	m := New()
	m.AddPoly(groundSquare(-10, -10, 10, 10, 0))

	ref, pt, ok := m.FindNearestPoly(d3.NewVec3XYZ(5, 0.2, 5), d3.NewVec3XYZ(1, 1, 1), NewStandardFilter())
	assert.True(t, ok)
	assert.NotZero(t, ref)
	assert.InDelta(t, 0, pt.Y(), 1e-5)
}

func TestFindPathAcrossTwoPolys(t *testing.T) {
	m := New()
	a := m.AddPoly(groundSquare(0, 0, 10, 10, 0))
	b := m.AddPoly(groundSquare(10, 0, 20, 10, 0))

	path, ok := m.FindPath(a, b, d3.NewVec3XYZ(1, 0, 5), d3.NewVec3XYZ(19, 0, 5), NewStandardFilter())
	assert.True(t, ok)
	assert.Equal(t, []PolyRef{a, b}, path)
}

func TestFindPathUnreachableReturnsPartial(t *testing.T) {
	m := New()
	a := m.AddPoly(groundSquare(0, 0, 10, 10, 0))
	b := m.AddPoly(groundSquare(100, 100, 110, 110, 0))

	path, ok := m.FindPath(a, b, d3.NewVec3XYZ(1, 0, 1), d3.NewVec3XYZ(101, 0, 101), NewStandardFilter())
	assert.False(t, ok)
	assert.Equal(t, []PolyRef{a}, path)
}

func TestFindStraightPathStartsAndEndsAtRequestedPoints(t *testing.T) {
	m := New()
	a := m.AddPoly(groundSquare(0, 0, 10, 10, 0))
	b := m.AddPoly(groundSquare(10, 0, 20, 10, 0))

	start := d3.NewVec3XYZ(1, 0, 5)
	end := d3.NewVec3XYZ(19, 0, 5)
	path, _ := m.FindPath(a, b, start, end, NewStandardFilter())
	waypoints := m.FindStraightPath(path, start, end)

	assert.True(t, len(waypoints) >= 2)
	assert.True(t, waypoints[0].Approx(start))
	assert.True(t, waypoints[len(waypoints)-1].Approx(end))
}

func TestPolyHeightAtInterpolatesSlope(t *testing.T) {
	m := New()
	// A ramp from (0,0,0)-(0,0,10) at y=0 up to (10,5,0)-(10,5,10) at y=5.
	ref := m.AddPoly([]d3.Vec3{
		d3.NewVec3XYZ(0, 0, 0),
		d3.NewVec3XYZ(10, 5, 0),
		d3.NewVec3XYZ(10, 5, 10),
		d3.NewVec3XYZ(0, 0, 10),
	})
	p := m.Poly(ref)
	assert.InDelta(t, 2.5, p.HeightAt(5, 5), 1e-3)
}
