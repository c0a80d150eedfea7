// Package pathing implements the path-validity checker/auto-fixer (spec.md
// §4.B) and the PathfindingService that wraps navmesh queries with
// validation and best-effort auto-fix (spec.md §4.C).
package pathing

import (
	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"

	"github.com/arl/navmove/navmesh"
)

// Stats summarizes a validated waypoint list, always computed regardless of
// whether validation passed.
type Stats struct {
	TotalLength     float32
	TotalClimb      float32
	MaxSegmentClimb float32
	MaxSegmentSlope float32
	SegmentCount    int
}

// Result is the outcome of Validate.
type Result struct {
	Valid            bool
	ViolatingSegment int // index of the first violating segment; -1 if Valid
	Stats            Stats
}

// segmentEpsilon is the horizontal-distance floor below which slope is
// defined as 90 degrees (a purely vertical segment), per spec.md §4.B.
const segmentEpsilon = 1e-4

// segment returns the climb (|Δy|) and slope (degrees) of the waypoint pair
// (a, b).
func segment(a, b d3.Vec3) (climb, slopeDeg float32) {
	dy := b.Y() - a.Y()
	climb = math32.Abs(dy)
	horiz := a.Dist2D(b)
	if horiz < segmentEpsilon {
		return climb, 90
	}
	slopeDeg := math32.Atan2(climb, horiz) * 180 / math32.Pi
	return climb, slopeDeg
}

// Validate checks that every consecutive waypoint pair satisfies
// maxClimb/maxSlopeDeg, rejecting on the first violation. Statistics are
// always computed over the full list, even when validation fails early.
func Validate(waypoints []d3.Vec3, maxClimb, maxSlopeDeg float32) Result {
	res := Result{Valid: true, ViolatingSegment: -1}
	if len(waypoints) < 2 {
		return res
	}

	for i := 0; i < len(waypoints)-1; i++ {
		climb, slopeDeg := segment(waypoints[i], waypoints[i+1])
		res.Stats.SegmentCount++
		res.Stats.TotalLength += waypoints[i].Dist(waypoints[i+1])
		res.Stats.TotalClimb += climb
		if climb > res.Stats.MaxSegmentClimb {
			res.Stats.MaxSegmentClimb = climb
		}
		if slopeDeg > res.Stats.MaxSegmentSlope {
			res.Stats.MaxSegmentSlope = slopeDeg
		}

		if res.Valid && (climb > maxClimb || slopeDeg > maxSlopeDeg) {
			res.Valid = false
			res.ViolatingSegment = i
		}
	}
	return res
}

// TryFix repairs every violating segment by inserting evenly spaced
// intermediate waypoints, interpolated linearly between the segment's
// endpoints and re-projected onto resolve. N is the smallest count that
// keeps each sub-segment's climb within maxClimb; subdivision leaves a
// straight segment's slope unchanged, so a segment steeper than maxSlopeDeg
// is not repaired and TryFix returns (nil, false). If resolve fails to
// project any intermediate point onto the navmesh, the fix also fails and
// TryFix returns (nil, false).
func TryFix(waypoints []d3.Vec3, maxClimb, maxSlopeDeg float32, resolve func(d3.Vec3) (d3.Vec3, bool)) ([]d3.Vec3, bool) {
	if len(waypoints) < 2 {
		return waypoints, true
	}

	fixed := []d3.Vec3{waypoints[0]}
	for i := 0; i < len(waypoints)-1; i++ {
		a, b := waypoints[i], waypoints[i+1]
		climb, slopeDeg := segment(a, b)
		if climb <= maxClimb && slopeDeg <= maxSlopeDeg {
			fixed = append(fixed, b)
			continue
		}

		n := segmentsNeeded(climb, maxClimb)
		for k := 1; k <= n; k++ {
			t := float32(k) / float32(n)
			interp := a.Lerp(b, t)
			resolved, ok := resolve(interp)
			if !ok {
				return nil, false
			}
			fixed = append(fixed, resolved)
		}
	}

	// A straight-line climb/horizontal ratio (hence slope) is unchanged by
	// uniform subdivision, so a segment that violates on slope alone cannot
	// be repaired this way; re-validating the fixed path catches that case
	// (and any the navmesh's resolve() introduced by snapping to terrain
	// that is not perfectly planar between the original endpoints).
	if !Validate(fixed, maxClimb, maxSlopeDeg).Valid {
		return nil, false
	}
	return fixed, true
}

// segmentsNeeded returns the smallest N such that splitting a segment with
// total vertical climb into N equal sub-segments keeps each sub-segment's
// climb within maxClimb.
func segmentsNeeded(climb, maxClimb float32) int {
	n := 1
	if maxClimb > 0 {
		if byClimb := int(math32.Ceil(climb / maxClimb)); byClimb > n {
			n = byClimb
		}
	}
	return n
}
