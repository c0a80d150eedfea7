package movement

import (
	"github.com/arl/math32"

	"github.com/arl/gogeo/f32/d3"
	"github.com/google/uuid"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/avoidance"
	"github.com/arl/navmove/character"
	"github.com/arl/navmove/physics"
)

// edgeCheckCadence and slopeGroundCadence are the guardrails against query
// flooding from spec.md §9: not tuning knobs, just a bound on per-agent
// per-tick navmesh queries.
const (
	edgeCheckCadence   = 10
	slopeGroundCadence = 5
)

// flatGroundTolerance / slopeGroundTolerance are the height-correction
// tolerances used by step 9's grounding clause.
const (
	flatGroundTolerance  = 0.05
	slopeGroundTolerance = 0.15
)

// detourSideStepDistance is how far off the direction-to-other-agent the
// yielding agent's side-step waypoint is placed (spec.md §4.F step 7).
const detourSideStepDistance = 3.0

// slowdownRadiusFactor scales agent radius into the distance from the final
// waypoint at which approach speed begins tapering, mirrored from the
// teacher's crowd steering (SPEC_FULL.md "Speed-scaled slowdown on
// approach").
const slowdownRadiusFactor = 2.0

// moveGrounded implements spec.md §4.F step 9.
func (c *Controller) moveGrounded(id agent.ID, ag *agent.Agent, ctrl character.Controller, session *MovementSession, waypoint d3.Vec3, effectiveSpeed float32, neighbors []avoidance.Neighbor, critical bool) {
	if session.IsLastWaypoint() {
		effectiveSpeed = taperedApproachSpeed(ag, waypoint, effectiveSpeed)
	}
	desired := horizontalDirection(ag.Position, waypoint).Scale(effectiveSpeed)

	if !critical && c.Config.EnableLocalAvoidance && c.Avoidance != nil {
		desired = c.Avoidance.AvoidanceVelocity(ag.Position, desired, neighbors)
	}

	session.edgeCheckTicks++
	if session.edgeCheckTicks%edgeCheckCadence == 0 {
		if c.edgeHazard(ag, session, desired) {
			c.zeroHorizontalVelocity(ag)
			c.replan(id, ag, session)
			return
		}
	}

	h := physics.BodyHandle(ag.BodyHandle)
	v := c.Engine.Velocity(h)
	next := d3.NewVec3XYZ(desired.X(), v.Y(), desired.Z())
	ag.LinearVelocity = next
	c.Engine.SetVelocity(h, next)

	c.applyHeightCorrection(ag, ctrl, session, desired, waypoint)
}

// moveRecovering implements spec.md §4.F step 10: same height-correction
// clause as step 9 but with zero desired horizontal motion.
func (c *Controller) moveRecovering(id agent.ID, ag *agent.Agent, ctrl character.Controller, session *MovementSession) {
	waypoint, ok := session.CurrentWaypoint()
	if ok {
		c.applyHeightCorrection(ag, ctrl, session, d3.NewVec3(), waypoint)
	}
	if ctrl.IsStable() {
		ctrl.SetGrounded()
		c.replan(id, ag, session)
	}
}

// applyHeightCorrection is shared by moveGrounded and moveRecovering.
func (c *Controller) applyHeightCorrection(ag *agent.Agent, ctrl character.Controller, session *MovementSession, desired d3.Vec3, waypoint d3.Vec3) {
	halfHeight := ag.Config.HalfHeight()
	horizontal := horizontalDist(ag.Position, waypoint)
	onSlope := isOnSlope(ag.Position.Y()-halfHeight, waypoint.Y(), horizontal)

	tolerance := flatGroundTolerance
	cadence := 1
	if onSlope {
		tolerance = slopeGroundTolerance
		cadence = slopeGroundCadence
	}

	session.slopeGroundTicks++
	if session.slopeGroundTicks%cadence != 0 {
		return
	}

	extents := d3.NewVec3XYZ(c.Config.HorizontalSearchExtent, c.Config.VerticalSearchExtent, c.Config.HorizontalSearchExtent)
	var targetY float32
	if surface, ok := c.Query.FindNearestValidPosition(ag.Position, extents); ok {
		targetY = surface.Y() + halfHeight
	} else {
		targetY = fallbackInterpolatedY(ag, session, halfHeight)
	}

	if math32.Abs(ag.Position.Y()-targetY) < tolerance {
		return
	}
	ctrl.ApplyGroundingForce(desired, targetY, halfHeight)
}

// fallbackInterpolatedY interpolates between the previous and current
// waypoint Y by xz-progress fraction, when NavQuery finds no surface
// beneath the agent (spec.md §4.F step 9).
func fallbackInterpolatedY(ag *agent.Agent, session *MovementSession, halfHeight float32) float32 {
	idx := session.CurrentWaypointIdx
	cur := session.Waypoints[idx]
	if idx == 0 {
		return cur.Y() + halfHeight
	}
	prev := session.Waypoints[idx-1]
	total := horizontalDist(prev, cur)
	if total < 1e-6 {
		return cur.Y() + halfHeight
	}
	done := horizontalDist(prev, ag.Position)
	frac := done / total
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return prev.Y() + (cur.Y()-prev.Y())*frac + halfHeight
}

// edgeHazard implements spec.md §4.F step 9's edge check: probe ahead
// along the desired direction; a missing or much-lower surface that isn't
// a legitimate path drop is treated as a hazard.
func (c *Controller) edgeHazard(ag *agent.Agent, session *MovementSession, desired d3.Vec3) bool {
	speed := desired.Len()
	if speed < 1e-4 {
		return false
	}
	dir := desired.Scale(1 / speed)
	probeDist := ag.Config.Radius * c.Config.EdgeCheckDistanceMultiplier
	probe := ag.Position.Add(dir.Scale(probeDist))

	extents := d3.NewVec3XYZ(c.Config.HorizontalSearchExtent, c.Config.VerticalSearchExtent, c.Config.HorizontalSearchExtent)
	currentGroundY := ag.Position.Y() - ag.Config.HalfHeight()

	surface, found := c.Query.FindNearestValidPosition(probe, extents)
	if !found {
		return !legitimateDrop(session, math32.MaxFloat32)
	}
	drop := currentGroundY - surface.Y()
	if drop <= c.Config.MaxSafeDropDistance {
		return false
	}
	return !legitimateDrop(session, drop)
}

// legitimateDrop reports whether the planned path itself descends: the
// current segment's |Δy| < 2m and the total remaining |Δy| across the path
// < 3m. The drop argument is not consulted, and a session still on its
// first waypoint never qualifies.
func legitimateDrop(session *MovementSession, drop float32) bool {
	idx := session.CurrentWaypointIdx
	if idx == 0 || idx >= len(session.Waypoints) {
		return false
	}
	segmentDy := math32.Abs(session.Waypoints[idx].Y() - session.Waypoints[idx-1].Y())
	if segmentDy >= 2.0 {
		return false
	}
	var remaining float32
	for i := idx; i < len(session.Waypoints)-1; i++ {
		remaining += math32.Abs(session.Waypoints[i+1].Y() - session.Waypoints[i].Y())
	}
	return remaining < 3.0
}

// insertDetour implements the yielding half of spec.md §4.F step 7's
// detour protocol: the lower-id agent inserts exactly one side-step
// waypoint per conflict, tagged with a correlation id for observability.
func (c *Controller) insertDetour(ag *agent.Agent, session *MovementSession, otherID agent.ID) {
	if session.DetourInserted {
		return
	}
	other, ok := c.agents[otherID]
	if !ok {
		return
	}

	waypoint, ok := session.CurrentWaypoint()
	if !ok {
		return
	}

	toOther := horizontalDirection(ag.Position, other.Position)
	perp := d3.NewVec3XYZ(-toOther.Z(), 0, toOther.X())
	detourPos := other.Position.Add(perp.Scale(detourSideStepDistance))
	// The detour's Y is the current target waypoint's Y, never the other
	// agent's Y (spec.md §4.F step 7).
	detour := d3.NewVec3XYZ(detourPos.X(), waypoint.Y(), detourPos.Z())

	final := session.Waypoints[len(session.Waypoints)-1]
	session.Waypoints = []d3.Vec3{detour, final}
	session.CurrentWaypointIdx = 0
	session.DetourInserted = true
	session.ConflictID = uuid.NewString()

	c.Log.Debugw("detour inserted", "agent", ag.ID, "conflict", session.ConflictID, "yielding_for", otherID)
}

// taperedApproachSpeed linearly scales speed to zero as the agent closes
// within slowdownRadiusFactor*radius of its final waypoint, so it settles
// into the destination threshold instead of arriving at full speed.
func taperedApproachSpeed(ag *agent.Agent, finalWaypoint d3.Vec3, speed float32) float32 {
	slowdownRadius := ag.Config.Radius * slowdownRadiusFactor
	if slowdownRadius <= 0 {
		return speed
	}
	dist := horizontalDist(ag.Position, finalWaypoint)
	if dist >= slowdownRadius {
		return speed
	}
	scale := dist / slowdownRadius
	if scale < 0 {
		scale = 0
	}
	return speed * scale
}

// horizontalDirection returns the unit xz direction from a to b, with Y
// zeroed. If a and b coincide in xz, returns the zero vector.
func horizontalDirection(a, b d3.Vec3) d3.Vec3 {
	d := b.Sub(a)
	d.SetY(0)
	l := d.Len()
	if l < 1e-6 {
		return d3.NewVec3()
	}
	return d.Scale(1 / l)
}
