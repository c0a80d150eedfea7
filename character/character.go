// Package character implements the capsule locomotion state machine and
// the two control laws that drive it: a velocity-based controller for
// gentle terrain and a motor-based controller for steep slopes (spec.md
// §4.E). Both share the same transition table; only the way they turn a
// desired motion into a physics velocity write differs.
package character

import (
	"github.com/arl/gogeo/f32/d3"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/physics"
)

// Controller is the interface both control laws satisfy. One instance is
// bound to exactly one Agent; the MovementController keeps a
// map[agent.ID]Controller rather than threading an agent id through every
// call (spec.md §9 "per-agent maps").
type Controller interface {
	State() agent.LocomotionState
	IsGrounded() bool
	IsAirborne() bool
	IsRecovering() bool
	IsStable() bool

	UpdateState(dt float32)

	ApplyGroundingForce(moveDir d3.Vec3, targetY, halfHeight float32)
	ApplyIdleGrounding()

	NotifyGroundContact(staticID int64)
	NotifyGroundContactRemoved(staticID int64)

	SetGrounded()
	SetAirborne()

	RemoveAgent()
}

// stateMachine holds the transition logic and per-agent fields shared by
// both control laws (spec.md §4.E transition table). It is embedded, not
// used standalone.
type stateMachine struct {
	ag                 *agent.Agent
	eng                physics.Engine
	stabilityThreshold float32
}

func (m *stateMachine) State() agent.LocomotionState { return m.ag.State }
func (m *stateMachine) IsGrounded() bool             { return m.ag.State == agent.Grounded }
func (m *stateMachine) IsAirborne() bool             { return m.ag.State == agent.Airborne }
func (m *stateMachine) IsRecovering() bool           { return m.ag.State == agent.Recovering }

// IsStable reports whether the agent has been continuously grounded long
// enough to be trusted for a replan-from-here decision: either already
// GROUNDED, or RECOVERING with recovery_elapsed >= stability_threshold
// (spec.md §8: "Recovery timer exactly equal to stability_threshold
// transitions to GROUNDED (inclusive)").
func (m *stateMachine) IsStable() bool {
	switch m.ag.State {
	case agent.Grounded:
		return true
	case agent.Recovering:
		return m.ag.RecoveryElapsed >= m.stabilityThreshold
	default:
		return false
	}
}

// UpdateState advances the GROUNDED/AIRBORNE/RECOVERING automaton from the
// current ground-contact set, per spec.md §4.E's transition table.
//
// RECOVERING only ever leaves to GROUNDED via the external SetGrounded(),
// called by the movement controller once it observes IsStable() — never
// autonomously here.
// UpdateState just accumulates RecoveryElapsed while contact holds, so the
// tick that crosses stabilityThreshold still dispatches to moveRecovering
// and gets its mandated replan-from-here before the state flips.
func (m *stateMachine) UpdateState(dt float32) {
	hasContact := len(m.ag.GroundContacts) > 0

	switch m.ag.State {
	case agent.Grounded:
		if !hasContact {
			m.ag.State = agent.Airborne
		}
	case agent.Airborne:
		if hasContact {
			m.ag.State = agent.Recovering
			m.ag.RecoveryElapsed = 0
		}
	case agent.Recovering:
		if !hasContact {
			m.ag.State = agent.Airborne
			m.ag.RecoveryElapsed = 0
			return
		}
		m.ag.RecoveryElapsed += dt
	}
}

func (m *stateMachine) NotifyGroundContact(staticID int64) {
	m.ag.GroundContacts[staticID] = struct{}{}
}

func (m *stateMachine) NotifyGroundContactRemoved(staticID int64) {
	delete(m.ag.GroundContacts, staticID)
}

// SetGrounded forces the GROUNDED state regardless of the contact set,
// e.g. after a successful replan-from-recovery (spec.md §4.F step 10).
func (m *stateMachine) SetGrounded() {
	m.ag.State = agent.Grounded
	m.ag.RecoveryElapsed = 0
}

// SetAirborne forces the AIRBORNE state, used by jump/knockback.
func (m *stateMachine) SetAirborne() {
	m.ag.State = agent.Airborne
	m.ag.RecoveryElapsed = 0
}

// RemoveAgent clears contact bookkeeping. The Agent itself is owned by the
// caller; this only drops the controller's view of it.
func (m *stateMachine) RemoveAgent() {
	for k := range m.ag.GroundContacts {
		delete(m.ag.GroundContacts, k)
	}
}

func (m *stateMachine) handle() physics.BodyHandle {
	return physics.BodyHandle(m.ag.BodyHandle)
}
