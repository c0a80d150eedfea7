package navmesh

import (
	"container/heap"

	"github.com/arl/assertgo"
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"
)

// hScale is the A* search heuristic scale, kept slightly under 1 the same
// way detour.HScale is: admissible but biased to resolve ties toward nodes
// closer to the goal.
const hScale = 0.999

// searchNode is one entry in the A* open/closed sets.
type searchNode struct {
	ref        PolyRef
	parent     PolyRef
	hasParent  bool
	pos        d3.Vec3
	cost       float32
	total      float32
	closed     bool
	queueIndex int
}

type nodeQueue []*searchNode

func (q nodeQueue) Len() int            { return len(q) }
func (q nodeQueue) Less(i, j int) bool  { return q[i].total < q[j].total }
func (q nodeQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i]; q[i].queueIndex, q[j].queueIndex = i, j }
func (q *nodeQueue) Push(x interface{}) {
	n := x.(*searchNode)
	n.queueIndex = len(*q)
	*q = append(*q, n)
}
func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// FindPath runs A* over the polygon adjacency graph from startRef to
// endRef, using startPos/endPos only for distance-based costs and the
// heuristic. It returns the ordered list of polygon refs from start to end,
// or reachedGoal=false if no path exists. If the goal is unreachable, the search
// instead returns the partial path to the node closest to the goal, the way
// detour.FindPath does for a "best effort" result — callers should treat a
// partial path as a failure unless they explicitly want best-effort.
func (m *NavMesh) FindPath(startRef, endRef PolyRef, startPos, endPos d3.Vec3, filter QueryFilter) (path []PolyRef, reachedGoal bool) {
	if startRef == endRef {
		return []PolyRef{startRef}, true
	}
	if !m.IsValidPolyRef(startRef) || !m.IsValidPolyRef(endRef) {
		return nil, false
	}

	nodes := make(map[PolyRef]*searchNode)
	start := &searchNode{ref: startRef, pos: startPos, cost: 0, total: startPos.Dist(endPos) * hScale}
	nodes[startRef] = start

	open := &nodeQueue{}
	heap.Init(open)
	heap.Push(open, start)

	best := start
	bestCost := start.total

	for open.Len() > 0 {
		cur := heap.Pop(open).(*searchNode)
		if cur.closed {
			continue
		}
		cur.closed = true

		if cur.ref == endRef {
			return reconstruct(nodes, cur.ref), true
		}

		curPoly := m.polys[cur.ref]
		for i, nref := range curPoly.Neighbors {
			if nref == 0 {
				continue
			}
			neighborPoly := m.polys[nref]
			if filter != nil && !filter.PassFilter(neighborPoly) {
				continue
			}
			portal := edgeMidpoint(curPoly, i)

			var edgeCost float32
			if filter != nil {
				edgeCost = filter.Cost(cur.pos, portal, neighborPoly)
			} else {
				edgeCost = cur.pos.Dist(portal)
			}
			next, seen := nodes[nref]
			cost := cur.cost + edgeCost
			if seen && next.closed {
				continue
			}
			if !seen {
				next = &searchNode{ref: nref, pos: portal, hasParent: true, parent: cur.ref}
				nodes[nref] = next
			} else if cost >= next.cost {
				continue
			}
			next.pos = portal
			next.hasParent = true
			next.parent = cur.ref
			next.cost = cost
			h := portal.Dist(endPos) * hScale
			next.total = cost + h
			heap.Push(open, next)

			if h < bestCost {
				bestCost = h
				best = next
			}
		}
	}
	return reconstruct(nodes, best.ref), best.ref == endRef
}

func reconstruct(nodes map[PolyRef]*searchNode, end PolyRef) []PolyRef {
	var rev []PolyRef
	for ref := end; ; {
		rev = append(rev, ref)
		n := nodes[ref]
		assert.True(n != nil, "reconstruct: ref %d has no search node", ref)
		if !n.hasParent {
			break
		}
		ref = n.parent
	}
	path := make([]PolyRef, len(rev))
	for i, r := range rev {
		path[len(rev)-1-i] = r
	}
	return path
}

func edgeMidpoint(p *Poly, edge int) d3.Vec3 {
	a := p.Verts[edge]
	b := p.Verts[(edge+1)%len(p.Verts)]
	return a.Lerp(b, 0.5)
}

// FindStraightPath reduces a polygon corridor to a waypoint list: one
// waypoint per portal (the shared edge between consecutive polygons),
// taken at its midpoint, followed by a collapsing pass that drops any
// waypoint lying within colinearEpsilon of the straight line between its
// neighbors. detour.FindStraightPath pulls a taut string across each
// portal's full left/right bounds (the funnel algorithm); this trades that
// optimal-tautness for a simpler, always-terminating implementation better
// suited to this core's coarse polygon scale — see DESIGN.md.
func (m *NavMesh) FindStraightPath(path []PolyRef, startPos, endPos d3.Vec3) []d3.Vec3 {
	if len(path) == 0 {
		return nil
	}
	if len(path) == 1 {
		return []d3.Vec3{d3.NewVec3From(startPos), d3.NewVec3From(endPos)}
	}

	waypoints := []d3.Vec3{d3.NewVec3From(startPos)}
	for i := 0; i < len(path)-1; i++ {
		cur := m.polys[path[i]]
		next := m.polys[path[i+1]]
		idx, ok := sharesEdge(cur, next, sharedEdgeEpsilon)
		if !ok {
			continue
		}
		a := cur.Verts[idx]
		b := cur.Verts[(idx+1)%len(cur.Verts)]
		waypoints = append(waypoints, a.Lerp(b, 0.5))
	}
	waypoints = append(waypoints, d3.NewVec3From(endPos))

	return collapseColinear(waypoints)
}

// colinearEpsilon is the perpendicular distance (in the XZ plane) below
// which an intermediate waypoint is considered redundant.
const colinearEpsilon = 0.05

func collapseColinear(pts []d3.Vec3) []d3.Vec3 {
	if len(pts) <= 2 {
		return pts
	}
	out := []d3.Vec3{pts[0]}
	for i := 1; i < len(pts)-1; i++ {
		prev, cur, next := out[len(out)-1], pts[i], pts[i+1]
		if distToSegmentXZ(cur, prev, next) > colinearEpsilon {
			out = append(out, cur)
		}
	}
	out = append(out, pts[len(pts)-1])
	return out
}

func distToSegmentXZ(p, a, b d3.Vec3) float32 {
	cx, cz := closestPointOnSegmentXZ(p.X(), p.Z(), a.X(), a.Z(), b.X(), b.Z())
	dx, dz := p.X()-cx, p.Z()-cz
	return math32.Sqrt(dx*dx + dz*dz)
}
