package character

import (
	"github.com/arl/gogeo/f32/d3"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/config"
	"github.com/arl/navmove/physics"
)

// VelocityController directly sets linear velocity components. When
// GROUNDED it strongly clamps vertical velocity near zero: used for gentle
// terrain where a hard clamp doesn't visibly launch or sink the agent
// (spec.md §4.E.1).
type VelocityController struct {
	stateMachine

	upwardZeroThreshold float32
	downwardCap         float32
	gain                float32
}

// NewVelocityController returns a velocity-based Controller bound to ag.
func NewVelocityController(ag *agent.Agent, eng physics.Engine, cfg config.Configuration) *VelocityController {
	return &VelocityController{
		stateMachine:        stateMachine{ag: ag, eng: eng, stabilityThreshold: cfg.StabilityThreshold},
		upwardZeroThreshold: cfg.GroundedUpwardVelocityThreshold,
		downwardCap:         cfg.GroundedDownwardVelocityCap,
		gain:                cfg.VerticalCorrectionGain,
	}
}

// ApplyGroundingForce writes moveDir's horizontal components verbatim and
// sets vertical velocity to a proportional nudge toward target_y, then
// immediately enforces the grounded vertical bounds: any upward component
// above GroundedUpwardVelocityThreshold is zeroed outright, any downward
// component is capped at GroundedDownwardVelocityCap. The zeroing dominates
// the proportional term in nearly every case, which is the point — this is
// a direct velocity SET every tick (a step function), unlike the motor
// controller's gradual blend toward a goal (spec.md §4.E.1).
func (c *VelocityController) ApplyGroundingForce(moveDir d3.Vec3, targetY, halfHeight float32) {
	if c.ag.State == agent.Airborne {
		return
	}

	yError := targetY - c.ag.Position.Y()
	vy := yError * c.gain
	vy = c.enforceVerticalBounds(vy)

	v := d3.NewVec3XYZ(moveDir.X(), vy, moveDir.Z())
	c.ag.LinearVelocity = v
	c.eng.SetVelocity(c.handle(), v)
}

// ApplyIdleGrounding holds a stationary agent on the surface: zero
// horizontal velocity, same vertical bounds as ApplyGroundingForce.
func (c *VelocityController) ApplyIdleGrounding() {
	if c.ag.State == agent.Airborne {
		return
	}
	vy := c.enforceVerticalBounds(c.ag.LinearVelocity.Y())
	v := d3.NewVec3XYZ(0, vy, 0)
	c.ag.LinearVelocity = v
	c.eng.SetVelocity(c.handle(), v)
}

// enforceVerticalBounds zeroes any upward component past
// upwardZeroThreshold outright (spec.md §4.E.1: "any upward component
// > 1 cm/s is zeroed") and caps any downward component at downwardCap.
func (c *VelocityController) enforceVerticalBounds(vy float32) float32 {
	if vy > c.upwardZeroThreshold {
		return 0
	}
	if vy < -c.downwardCap {
		return -c.downwardCap
	}
	return vy
}
