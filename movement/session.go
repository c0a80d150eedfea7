package movement

import (
	"github.com/arl/gogeo/f32/d3"

	"github.com/arl/navmove/agent"
)

// MovementSession is created on a move request (spec.md §3). It is owned
// exclusively by the Controller, keyed by agent id. Reaching the
// destination marks it Completed and leaves it in place; Stop, a failed
// replan and RemoveAgent delete it.
type MovementSession struct {
	TargetPosition d3.Vec3
	Waypoints      []d3.Vec3

	// CurrentWaypointIdx is monotonic non-decreasing except when a detour
	// or replan resets the waypoint list.
	CurrentWaypointIdx int

	LastValidationElapsed float32
	LastReplanTime        float32

	// DetourInserted guards single-insertion of a side-step waypoint for a
	// given conflict (spec.md §4.F step 7, §9 open question (c)).
	DetourInserted bool
	ConflictID     string

	// Completed is terminal: once set, each tick zeroes the agent's
	// horizontal velocity, keeps its vertical velocity, and moves it no
	// further along the path.
	Completed bool

	edgeCheckTicks int
	slopeGroundTicks int
}

// CurrentWaypoint returns the waypoint the session is pursuing, or a zero
// Vec3 and false if the path is exhausted.
func (s *MovementSession) CurrentWaypoint() (d3.Vec3, bool) {
	if s.CurrentWaypointIdx >= len(s.Waypoints) {
		return nil, false
	}
	return s.Waypoints[s.CurrentWaypointIdx], true
}

// IsLastWaypoint reports whether CurrentWaypointIdx addresses the final
// waypoint in the path.
func (s *MovementSession) IsLastWaypoint() bool {
	return s.CurrentWaypointIdx == len(s.Waypoints)-1
}

// Progress returns how far along the waypoint list the session is, in
// [0, 1], for the movement-progress event.
func (s *MovementSession) Progress() float32 {
	if len(s.Waypoints) == 0 {
		return 1
	}
	return float32(s.CurrentWaypointIdx) / float32(len(s.Waypoints))
}

// MovementRequest is the public move-to-target request (spec.md §6).
type MovementRequest struct {
	AgentID       agent.ID
	Target        d3.Vec3
	MaxSpeed      float32
	AgentHeight   float32
	AgentRadius   float32
	SearchExtents *d3.Vec3
}

// MovementResponse is request_movement's result (spec.md §6).
type MovementResponse struct {
	Success         bool
	Message         string
	ActualStart     d3.Vec3
	ActualTarget    d3.Vec3
	EstimatedLength float32
	EstimatedTime   float32
	Path            []d3.Vec3
}
