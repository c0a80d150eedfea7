package navmesh

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/stretchr/testify/assert"
)

func bridgeOverGroundMesh() *NavMesh {
	m := New()
	m.AddPoly(groundSquare(0, 0, 20, 20, 0))
	m.AddPoly(groundSquare(5, 5, 15, 15, 5))
	return m
}

// Spec.md §8 scenario 6: two walkable surfaces at xz=(10,10), Y=0 (ground)
// and Y=5 (bridge).
func TestFindNearestValidPositionDownwardPriority(t *testing.T) {
	m := bridgeOverGroundMesh()
	q := NewQuery(m, NewStandardFilter())
	extents := d3.NewVec3XYZ(1, 10, 1)

	below, ok := q.FindNearestValidPosition(d3.NewVec3XYZ(10, 3, 10), extents)
	assert.True(t, ok)
	assert.InDelta(t, 0, below.Y(), 1e-3, "hint below the bridge should resolve to the ground")

	above, ok := q.FindNearestValidPosition(d3.NewVec3XYZ(10, 6, 10), extents)
	assert.True(t, ok)
	assert.InDelta(t, 5, above.Y(), 1e-3, "hint above the bridge should resolve to the bridge")

	fallback, ok := q.FindNearestValidPosition(d3.NewVec3XYZ(10, -2, 10), extents)
	assert.True(t, ok)
	assert.InDelta(t, 0, fallback.Y(), 1e-3, "hint below every surface falls back upward to the nearest one")
}

func TestFindNearestValidPositionIdempotentOnSurface(t *testing.T) {
	m := New()
	m.AddPoly(groundSquare(-10, -10, 10, 10, 0))
	q := NewQuery(m, NewStandardFilter())
	extents := d3.NewVec3XYZ(1, 5, 1)

	first, ok := q.FindNearestValidPosition(d3.NewVec3XYZ(2, 0, 2), extents)
	assert.True(t, ok)
	second, ok := q.FindNearestValidPosition(first, extents)
	assert.True(t, ok)
	assert.InDelta(t, first.Y(), second.Y(), 1e-2)
}

func TestIsValidFalseOffMesh(t *testing.T) {
	m := New()
	m.AddPoly(groundSquare(-10, -10, 10, 10, 0))
	q := NewQuery(m, NewStandardFilter())

	assert.False(t, q.IsValid(d3.NewVec3XYZ(100, 0, 100), d3.NewVec3XYZ(1, 5, 1)))
}
