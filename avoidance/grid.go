// Package avoidance implements short-horizon steering: neighbor lookup via
// a spatial hash grid, separation-force blending, collision-time
// prediction and logjam detection (spec.md §4.D).
package avoidance

import "github.com/arl/math32"

// Grid buckets agent ids into a uniform hash grid over the XZ plane so
// neighbor queries don't scan every registered agent every tick. Adapted
// from the teacher's crowd.ProximityGrid, generalized from a fixed uint16
// item pool to the agent.ID domain since this module doesn't bound crowd
// size to what fits a 16-bit pool.
type Grid struct {
	cellSize float32
	buckets  map[int64][]int
}

// NewGrid returns an empty Grid with the given cell size.
func NewGrid(cellSize float32) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &Grid{cellSize: cellSize, buckets: make(map[int64][]int)}
}

// Clear empties the grid, ready for the next tick's registration pass.
func (g *Grid) Clear() {
	for k := range g.buckets {
		delete(g.buckets, k)
	}
}

// cellIndexKey packs a pair of cell indices into a single bucket key.
func cellIndexKey(ix, iz int64) int64 {
	return ix<<32 ^ (iz & 0xffffffff)
}

// Add registers id at (x, z), covering every cell its [minx,maxx]x[minz,maxz]
// bounding box overlaps (the agent's radius footprint).
func (g *Grid) Add(id int, x, z, radius float32) {
	minx, maxx := x-radius, x+radius
	minz, maxz := z-radius, z+radius

	minIX := int64(math32.Floor(minx / g.cellSize))
	maxIX := int64(math32.Floor(maxx / g.cellSize))
	minIZ := int64(math32.Floor(minz / g.cellSize))
	maxIZ := int64(math32.Floor(maxz / g.cellSize))

	for ix := minIX; ix <= maxIX; ix++ {
		for iz := minIZ; iz <= maxIZ; iz++ {
			key := cellIndexKey(ix, iz)
			g.buckets[key] = append(g.buckets[key], id)
		}
	}
}

// Query returns every distinct id registered in a cell overlapping the box
// [x-r,x+r]x[z-r,z+r].
func (g *Grid) Query(x, z, r float32) []int {
	minIX := int64(math32.Floor((x - r) / g.cellSize))
	maxIX := int64(math32.Floor((x + r) / g.cellSize))
	minIZ := int64(math32.Floor((z - r) / g.cellSize))
	maxIZ := int64(math32.Floor((z + r) / g.cellSize))

	seen := make(map[int]struct{})
	var out []int
	for ix := minIX; ix <= maxIX; ix++ {
		for iz := minIZ; iz <= maxIZ; iz++ {
			key := cellIndexKey(ix, iz)
			for _, id := range g.buckets[key] {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					out = append(out, id)
				}
			}
		}
	}
	return out
}
