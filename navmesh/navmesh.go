package navmesh

import (
	"github.com/arl/gogeo/f32/d3"
)

// sharedEdgeEpsilon is how close two polygon edges must be, per-component,
// to be considered the same physical edge and therefore adjacent. Kept
// tight so that a bridge directly above ground level never auto-links to
// the ground polygon beneath it.
const sharedEdgeEpsilon = 1e-3

// QueryFilter decides which polygons a query may visit and how much it
// costs to cross them. The core always uses a filter that requires the
// walkable bit (spec.md §6, "Filter accepts a walkable bit").
type QueryFilter interface {
	PassFilter(p *Poly) bool
	Cost(from, to d3.Vec3, poly *Poly) float32
}

// StandardFilter accepts every walkable polygon and costs crossings by
// straight-line distance, scaled per Area.
type StandardFilter struct {
	AreaCost map[uint8]float32
}

// NewStandardFilter returns a filter with every area's cost at 1.0.
func NewStandardFilter() *StandardFilter {
	return &StandardFilter{AreaCost: make(map[uint8]float32)}
}

// PassFilter implements QueryFilter.
func (f *StandardFilter) PassFilter(p *Poly) bool { return p.Walkable() }

// Cost implements QueryFilter.
func (f *StandardFilter) Cost(from, to d3.Vec3, poly *Poly) float32 {
	cost, ok := f.AreaCost[poly.Area]
	if !ok {
		cost = 1.0
	}
	return from.Dist(to) * cost
}

// NavMesh is a set of convex walkable polygons with adjacency computed
// automatically from shared edges at AddPoly time.
type NavMesh struct {
	polys  map[PolyRef]*Poly
	nextID PolyRef
}

// New returns an empty NavMesh.
func New() *NavMesh {
	return &NavMesh{polys: make(map[PolyRef]*Poly)}
}

// AddPoly adds a convex polygon (verts wound counter-clockwise looking down
// +Y) and links it to every existing polygon it shares an edge with.
func (m *NavMesh) AddPoly(verts []d3.Vec3) PolyRef {
	m.nextID++
	ref := m.nextID
	p := newPoly(ref, verts)
	for _, other := range m.polys {
		if i, ok := sharesEdge(p, other, sharedEdgeEpsilon); ok {
			p.Neighbors[i] = other.Ref
			if j, ok := sharesEdge(other, p, sharedEdgeEpsilon); ok {
				other.Neighbors[j] = p.Ref
			}
		}
	}
	m.polys[ref] = p
	return ref
}

// Poly returns the polygon for ref, or nil if unknown.
func (m *NavMesh) Poly(ref PolyRef) *Poly { return m.polys[ref] }

// IsValidPolyRef reports whether ref names a polygon in this mesh.
func (m *NavMesh) IsValidPolyRef(ref PolyRef) bool {
	_, ok := m.polys[ref]
	return ok
}

// FindNearestPoly returns the polygon whose XZ projection contains (or is
// closest to) point, constrained to the box point±extents, preferring the
// polygon whose surface Y is closest to point.Y. It is the "ask the navmesh
// for the nearest polygon within extents" primitive spec.md §4.A samples
// repeatedly along a vertical column.
func (m *NavMesh) FindNearestPoly(point, extents d3.Vec3, filter QueryFilter) (ref PolyRef, nearest d3.Vec3, found bool) {
	var (
		bestDist float32
		bestRef  PolyRef
		bestPt   d3.Vec3
	)
	minX, maxX := point.X()-extents.X(), point.X()+extents.X()
	minY, maxY := point.Y()-extents.Y(), point.Y()+extents.Y()
	minZ, maxZ := point.Z()-extents.Z(), point.Z()+extents.Z()

	for _, p := range m.polys {
		if filter != nil && !filter.PassFilter(p) {
			continue
		}
		if p.max.X() < minX || p.min.X() > maxX || p.max.Z() < minZ || p.min.Z() > maxZ {
			continue
		}
		cx, cz := p.ClosestPointXZ(point.X(), point.Z())
		cy := p.HeightAt(cx, cz)
		if cy < minY || cy > maxY {
			continue
		}
		dx, dy, dz := cx-point.X(), cy-point.Y(), cz-point.Z()
		d := dx*dx + dy*dy + dz*dz
		if bestRef == 0 || d < bestDist {
			bestDist = d
			bestRef = p.Ref
			bestPt = d3.NewVec3XYZ(cx, cy, cz)
		}
	}
	if bestRef == 0 {
		return 0, nil, false
	}
	return bestRef, bestPt, true
}

// PolysAtColumn returns every walkable polygon whose XZ projection contains
// (x, z), regardless of Y. Used by NavQuery to enumerate distinct surfaces
// beneath a multi-level point (bridge over ground, stacked floors).
func (m *NavMesh) PolysAtColumn(x, z float32, filter QueryFilter) []*Poly {
	var out []*Poly
	for _, p := range m.polys {
		if filter != nil && !filter.PassFilter(p) {
			continue
		}
		if p.ContainsXZ(x, z) {
			out = append(out, p)
		}
	}
	return out
}
