package navmesh

import (
	"github.com/arl/gogeo/f32/d3"
)

// sameSurfaceEpsilon: samples within this distance of an already-recorded
// surface Y are folded into it rather than treated as a second surface
// (spec.md §4.A step 1).
const sameSurfaceEpsilon = 0.1

// defaultColumnStep is the vertical sampling step used when scanning a
// column for distinct walkable surfaces.
const defaultColumnStep = 0.5

// NavQuery answers "which navmesh surface Y should an agent at hint-height
// y_h snap to at (x, z)?" with downward priority: multiple walkable
// surfaces can exist at the same (x, z) — a bridge over ground, stacked
// floors — and callers must deterministically prefer the one at or below
// their current height, the way gravity would.
//
// The same NavQuery instance and FindNearestValidPosition call MUST be used
// to validate agent spawns, project move-to targets, and find per-frame
// ground Y beneath a moving agent, so pathfinding and locomotion never
// disagree about which floor an agent is on (spec.md §4.A rationale).
type NavQuery struct {
	Mesh   *NavMesh
	Filter QueryFilter
}

// NewQuery returns a NavQuery over mesh using filter (a StandardFilter if nil).
func NewQuery(mesh *NavMesh, filter QueryFilter) *NavQuery {
	if filter == nil {
		filter = NewStandardFilter()
	}
	return &NavQuery{Mesh: mesh, Filter: filter}
}

// FindNearestValidPosition implements spec.md §4.A's downward-priority
// surface lookup. It samples the column at (p.X, p.Z) from p.Y down to
// p.Y-extents.Y in defaultColumnStep increments, folding samples within
// sameSurfaceEpsilon of an already-found surface together, and returns the
// highest surface at or below p.Y. If none is found below, it samples
// upward from p.Y+step to p.Y+extents.Y and returns the first surface
// found. Returns found=false if the column has no walkable surface within
// extents at all.
func (q *NavQuery) FindNearestValidPosition(p, extents d3.Vec3) (result d3.Vec3, found bool) {
	step := defaultColumnStep
	if step > extents.Y() && extents.Y() > 0 {
		step = extents.Y()
	}

	var surfacesBelow []float32
	if step > 0 {
		for y := p.Y(); y >= p.Y()-extents.Y(); y -= step {
			if sy, ok := q.surfaceAt(p.X(), p.Z(), y, extents); ok {
				surfacesBelow = appendDistinctSurface(surfacesBelow, sy)
			}
		}
	} else if sy, ok := q.surfaceAt(p.X(), p.Z(), p.Y(), extents); ok {
		surfacesBelow = appendDistinctSurface(surfacesBelow, sy)
	}

	if best, ok := greatestAtMost(surfacesBelow, p.Y()); ok {
		return d3.NewVec3XYZ(p.X(), best, p.Z()), true
	}

	if step > 0 {
		for y := p.Y() + step; y <= p.Y()+extents.Y(); y += step {
			if sy, ok := q.surfaceAt(p.X(), p.Z(), y, extents); ok {
				return d3.NewVec3XYZ(p.X(), sy, p.Z()), true
			}
		}
	}
	return nil, false
}

// IsValid reports whether p lies on (or resolves to, via
// FindNearestValidPosition) a walkable surface within extents.
func (q *NavQuery) IsValid(p, extents d3.Vec3) bool {
	_, ok := q.FindNearestValidPosition(p, extents)
	return ok
}

func (q *NavQuery) surfaceAt(x, z, y float32, extents d3.Vec3) (float32, bool) {
	_, pt, ok := q.Mesh.FindNearestPoly(d3.NewVec3XYZ(x, y, z), extents, q.Filter)
	if !ok {
		return 0, false
	}
	return pt.Y(), true
}

func appendDistinctSurface(surfaces []float32, y float32) []float32 {
	for _, s := range surfaces {
		if abs32(s-y) < sameSurfaceEpsilon {
			return surfaces
		}
	}
	return append(surfaces, y)
}

// greatestAtMost returns the greatest value in ys that is <= limit.
func greatestAtMost(ys []float32, limit float32) (float32, bool) {
	var (
		best  float32
		found bool
	)
	for _, y := range ys {
		if y <= limit && (!found || y > best) {
			best, found = y, true
		}
	}
	return best, found
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
