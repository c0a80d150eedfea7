// Package navmesh is the in-memory navmesh substrate the movement core
// queries: convex walkable polygons, A* path search over their adjacency
// graph, path straightening, and the downward-priority multi-level surface
// lookup used by NavQuery (spec.md §4.A).
//
// It deliberately does not cover navmesh generation (voxelization, contour
// extraction, polygon mesh construction) or binary mesh file formats — both
// are out of scope per spec.md §1. Callers build a NavMesh directly from
// convex polygons, the way a generator's output would be handed to this
// layer in a full system.
package navmesh

import (
	"math"

	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// PolyRef identifies a polygon within a NavMesh. The zero value never
// refers to a real polygon.
type PolyRef uint32

// Poly is a convex walkable polygon. Vertices are wound consistently
// (counter-clockwise looking down the Y axis) and need not be coplanar with
// the XZ plane: a sloped ramp polygon has verts at varying Y, and HeightAt
// interpolates across its plane.
type Poly struct {
	Ref       PolyRef
	Verts     []d3.Vec3
	Neighbors []PolyRef // Neighbors[i] borders the edge (Verts[i], Verts[i+1]); 0 if none.
	Area      uint8
	Flags     uint16

	centroid d3.Vec3
	normal   d3.Vec3
	min, max d3.Vec3
}

const walkableFlag uint16 = 0x1

// Walkable reports whether the polygon can be traversed by a filter that
// requires the walkable bit.
func (p *Poly) Walkable() bool { return p.Flags&walkableFlag != 0 }

func newPoly(ref PolyRef, verts []d3.Vec3) *Poly {
	p := &Poly{
		Ref:       ref,
		Verts:     verts,
		Neighbors: make([]PolyRef, len(verts)),
		Flags:     walkableFlag,
	}
	p.computeDerived()
	return p
}

func (p *Poly) computeDerived() {
	c := d3.NewVec3()
	for _, v := range p.Verts {
		c = c.Add(v)
	}
	p.centroid = c.Scale(1.0 / float32(len(p.Verts)))

	// Plane normal via Newell's method, robust for near-collinear slivers.
	n := d3.NewVec3()
	for i := range p.Verts {
		cur := p.Verts[i]
		next := p.Verts[(i+1)%len(p.Verts)]
		n[0] += (cur.Y() - next.Y()) * (cur.Z() + next.Z())
		n[1] += (cur.Z() - next.Z()) * (cur.X() + next.X())
		n[2] += (cur.X() - next.X()) * (cur.Y() + next.Y())
	}
	if n.LenSqr() > 1e-12 {
		n.Normalize()
	} else {
		n = d3.NewVec3XYZ(0, 1, 0)
	}
	p.normal = n

	mn := d3.NewVec3From(p.Verts[0])
	mx := d3.NewVec3From(p.Verts[0])
	for _, v := range p.Verts[1:] {
		d3.Vec3Min(mn, v)
		d3.Vec3Max(mx, v)
	}
	p.min, p.max = mn, mx
}

// Centroid returns the polygon's vertex-average center.
func (p *Poly) Centroid() d3.Vec3 { return d3.NewVec3From(p.centroid) }

// ContainsXZ reports whether (x, z) falls within the polygon's projection
// onto the XZ plane, using a standard ray-casting point-in-polygon test.
func (p *Poly) ContainsXZ(x, z float32) bool {
	inside := false
	n := len(p.Verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		vi, vj := p.Verts[i], p.Verts[j]
		if (vi.Z() > z) != (vj.Z() > z) {
			xint := (vj.X()-vi.X())*(z-vi.Z())/(vj.Z()-vi.Z()) + vi.X()
			if x < xint {
				inside = !inside
			}
		}
	}
	return inside
}

// HeightAt interpolates the polygon's surface Y at (x, z), assuming (x, z)
// lies on or near the polygon's plane. Degenerates gracefully (returns the
// first vertex's Y) for a plane parallel to the Y axis.
func (p *Poly) HeightAt(x, z float32) float32 {
	if math32.Abs(p.normal.Y()) < 1e-6 {
		return p.Verts[0].Y()
	}
	v0 := p.Verts[0]
	return v0.Y() - (p.normal.X()*(x-v0.X())+p.normal.Z()*(z-v0.Z()))/p.normal.Y()
}

// ClosestPointXZ returns the closest point to (x, z) that lies within the
// polygon's XZ projection: (x, z) itself when already inside, otherwise the
// closest point on the polygon's boundary.
func (p *Poly) ClosestPointXZ(x, z float32) (cx, cz float32) {
	if p.ContainsXZ(x, z) {
		return x, z
	}
	best := float32(math.MaxFloat32)
	n := len(p.Verts)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p.Verts[j], p.Verts[i]
		px, pz := closestPointOnSegmentXZ(x, z, a.X(), a.Z(), b.X(), b.Z())
		dx, dz := px-x, pz-z
		d := dx*dx + dz*dz
		if d < best {
			best, cx, cz = d, px, pz
		}
	}
	return cx, cz
}

func closestPointOnSegmentXZ(px, pz, ax, az, bx, bz float32) (float32, float32) {
	abx, abz := bx-ax, bz-az
	denom := abx*abx + abz*abz
	if denom < 1e-12 {
		return ax, az
	}
	t := ((px-ax)*abx + (pz-az)*abz) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return ax + abx*t, az + abz*t
}

// sharesEdge reports whether a and b have an edge in common (two vertices
// approximately equal, in full 3D, within eps) and returns the local edge
// index on a.
func sharesEdge(a, b *Poly, eps float32) (int, bool) {
	na, nb := len(a.Verts), len(b.Verts)
	for i := 0; i < na; i++ {
		a0, a1 := a.Verts[i], a.Verts[(i+1)%na]
		for j := 0; j < nb; j++ {
			b0, b1 := b.Verts[j], b.Verts[(j+1)%nb]
			if (approxVec(a0, b0, eps) && approxVec(a1, b1, eps)) ||
				(approxVec(a0, b1, eps) && approxVec(a1, b0, eps)) {
				return i, true
			}
		}
	}
	return 0, false
}

func approxVec(a, b d3.Vec3, eps float32) bool {
	return math32.Abs(a.X()-b.X()) < eps &&
		math32.Abs(a.Y()-b.Y()) < eps &&
		math32.Abs(a.Z()-b.Z()) < eps
}
