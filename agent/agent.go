// Package agent defines the capsule-shaped character and the per-world
// configuration that the navmesh, pathing, avoidance, character and
// movement packages all share.
package agent

import "github.com/arl/gogeo/f32/d3"

// LocomotionState is the three-state automaton driven by the agent's
// ground-contact set (spec.md §4.E). Vertical velocity is not consulted:
// losing every ground contact moves a Grounded agent to Airborne.
type LocomotionState int

const (
	// Grounded means the agent is resting on a surface; the controller is
	// actively pinning it there.
	Grounded LocomotionState = iota
	// Airborne means physics owns the agent's motion entirely.
	Airborne
	// Recovering means the agent has just regained ground contact but has
	// not yet held it for StabilityThreshold seconds.
	Recovering
)

func (s LocomotionState) String() string {
	switch s {
	case Grounded:
		return "grounded"
	case Airborne:
		return "airborne"
	case Recovering:
		return "recovering"
	default:
		return "unknown"
	}
}

// ID is an agent's stable integer identity. Detour-protocol priority and
// crowd iteration order are both defined over this value.
type ID int

// Config is the single source of truth for navmesh build parameters, path
// validation thresholds and runtime enforcement for one class of agent.
// Navmesh generation (out of scope for this module) MUST be produced with
// the same MaxClimb/MaxSlopeDeg/Radius/Height or the ConfigDrift warning
// fires wherever a divergent PathfindingConfiguration is supplied.
type Config struct {
	MaxClimb    float32 // maximum per-segment vertical step, meters
	MaxSlopeDeg float32 // maximum walkable slope angle, degrees
	Radius      float32
	Height      float32
}

// HalfHeight is length/2 + radius: the vertical offset between the capsule's
// physics center and the ground contact point beneath it.
//
// Invariant: physics_center_y - HalfHeight() == ground_contact_y.
func (c Config) HalfHeight() float32 {
	return c.Height/2 + c.Radius
}

// Agent is one simulated capsule character. Position, LinearVelocity and
// BodyHandle are owned by the physics engine; everything else belongs to
// the movement core.
type Agent struct {
	ID     ID
	Config Config

	MaxSpeed float32

	// Position and LinearVelocity mirror the authoritative values held by
	// the physics engine; the movement core refreshes them each tick via
	// physics.Engine rather than caching stale copies across ticks.
	Position       d3.Vec3
	LinearVelocity d3.Vec3
	BodyHandle     uintptr

	State LocomotionState

	// GroundContacts is the set of static entity ids currently touching
	// this agent with an upward-facing normal (normal.Y > 0.7).
	GroundContacts map[int64]struct{}

	// RecoveryElapsed accumulates seconds spent in Recovering since the
	// last contact-set transition into that state.
	RecoveryElapsed float32
}

// New returns an Agent in its initial Grounded state at pos.
func New(id ID, cfg Config, maxSpeed float32, pos d3.Vec3) *Agent {
	return &Agent{
		ID:             id,
		Config:         cfg,
		MaxSpeed:       maxSpeed,
		Position:       d3.NewVec3From(pos),
		LinearVelocity: d3.NewVec3(),
		State:          Grounded,
		GroundContacts: make(map[int64]struct{}),
	}
}

// GroundY returns the navmesh surface Y implied by the agent's current
// physics-center Y and half-height.
func (a *Agent) GroundY() float32 {
	return a.Position.Y() - a.Config.HalfHeight()
}

// TargetY returns the physics-center Y an agent must hold to rest on a
// surface at surfaceY.
func (a *Agent) TargetY(surfaceY float32) float32 {
	return surfaceY + a.Config.HalfHeight()
}
