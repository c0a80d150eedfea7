package character

import (
	"github.com/arl/math32"

	"github.com/arl/gogeo/f32/d3"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/config"
	"github.com/arl/navmove/physics"
)

// MotorController applies velocity deltas toward a velocity goal scaled by
// motor_strength, rather than setting velocity outright. Preferred on
// steep slopes because the gradual blend avoids the step-function
// velocity changes that would launch the agent (spec.md §4.E.2).
type MotorController struct {
	stateMachine

	motorStrength         float32
	maxVerticalCorrection float32
	tolerance             float32
	gain                  float32
}

// NewMotorController returns a motor-based Controller bound to ag.
func NewMotorController(ag *agent.Agent, eng physics.Engine, cfg config.Configuration) *MotorController {
	return &MotorController{
		stateMachine:          stateMachine{ag: ag, eng: eng, stabilityThreshold: cfg.StabilityThreshold},
		motorStrength:         cfg.MotorStrength,
		maxVerticalCorrection: cfg.MaxVerticalCorrection,
		tolerance:             cfg.VerticalCorrectionTolerance,
		gain:                  cfg.VerticalCorrectionGain,
	}
}

// verticalGoal derives the desired vertical velocity from a proportional
// height controller (y_error * gain), clamped to maxVerticalCorrection,
// with strong damping when already within tolerance.
func (c *MotorController) verticalGoal(targetY float32) float32 {
	yError := targetY - c.ag.Position.Y()
	if math32.Abs(yError) < c.tolerance {
		return 0
	}
	goal := yError * c.gain
	if goal > c.maxVerticalCorrection {
		goal = c.maxVerticalCorrection
	}
	if goal < -c.maxVerticalCorrection {
		goal = -c.maxVerticalCorrection
	}
	return goal
}

// ApplyGroundingForce blends the current velocity toward
// (moveDir.xz, verticalGoal) by motorStrength, so the full correction is
// spread over several ticks instead of applied as a single step.
func (c *MotorController) ApplyGroundingForce(moveDir d3.Vec3, targetY, halfHeight float32) {
	if c.ag.State == agent.Airborne {
		return
	}

	goal := d3.NewVec3XYZ(moveDir.X(), c.verticalGoal(targetY), moveDir.Z())
	cur := c.ag.LinearVelocity
	next := cur.Lerp(goal, c.motorStrength)

	c.ag.LinearVelocity = next
	c.eng.SetVelocity(c.handle(), next)
}

// ApplyIdleGrounding blends horizontal velocity to zero and vertical
// velocity toward the same proportional height goal, using the agent's
// current ground Y as its own target (a stationary agent's target is
// wherever it already rests).
func (c *MotorController) ApplyIdleGrounding() {
	if c.ag.State == agent.Airborne {
		return
	}
	cur := c.ag.LinearVelocity
	next := cur.Lerp(d3.NewVec3XYZ(0, 0, 0), c.motorStrength)
	c.ag.LinearVelocity = next
	c.eng.SetVelocity(c.handle(), next)
}
