package avoidance

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/config"
)

func TestNeighborsOrderedByDistanceAndExcludesSelf(t *testing.T) {
	la := New(config.Default())
	la.Register(Entity{ID: 1, Position: d3.NewVec3XYZ(0, 0, 0), Radius: 0.5})
	la.Register(Entity{ID: 2, Position: d3.NewVec3XYZ(1, 0, 0), Radius: 0.5})
	la.Register(Entity{ID: 3, Position: d3.NewVec3XYZ(2, 0, 0), Radius: 0.5})
	la.Register(Entity{ID: 4, Position: d3.NewVec3XYZ(100, 0, 0), Radius: 0.5})

	ns := la.Neighbors(d3.NewVec3XYZ(0, 0, 0), 1, 10)
	require.Len(t, ns, 2)
	assert.Equal(t, agent.ID(2), ns[0].ID)
	assert.Equal(t, agent.ID(3), ns[1].ID)
}

func TestNeighborsRespectsMaxK(t *testing.T) {
	la := New(config.Default())
	for i := 0; i < 5; i++ {
		la.Register(Entity{ID: agent.ID(i), Position: d3.NewVec3XYZ(float32(i)*0.1, 0, 0), Radius: 0.5})
	}
	ns := la.Neighbors(d3.NewVec3XYZ(0, 0, 0), -1, 2)
	assert.Len(t, ns, 2)
}

func TestAvoidanceVelocityPreservesDesiredSpeed(t *testing.T) {
	la := New(config.Default())
	desired := d3.NewVec3XYZ(1, 0, 0)
	neighbors := []Neighbor{
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(0.5, 0, 0)}, Distance: 0.5},
	}
	out := la.AvoidanceVelocity(d3.NewVec3XYZ(0, 0, 0), desired, neighbors)
	assert.InDelta(t, desired.Len(), out.Len(), 1e-3)
}

func TestAvoidanceVelocityDeflectsAwayFromNeighbor(t *testing.T) {
	la := New(config.Default())
	desired := d3.NewVec3XYZ(1, 0, 0)
	neighbors := []Neighbor{
		// directly ahead, within separation radius: should push sideways/back.
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(1, 0, 0)}, Distance: 1},
	}
	out := la.AvoidanceVelocity(d3.NewVec3XYZ(0, 0, 0), desired, neighbors)
	assert.Less(t, out.X(), desired.X())
}

func TestAvoidanceVelocityIgnoresNeighborsBeyondSeparationRadius(t *testing.T) {
	cfg := config.Default()
	la := New(cfg)
	desired := d3.NewVec3XYZ(1, 0, 0)
	neighbors := []Neighbor{
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(cfg.SeparationRadius*10, 0, 0)}, Distance: cfg.SeparationRadius * 10},
	}
	out := la.AvoidanceVelocity(d3.NewVec3XYZ(0, 0, 0), desired, neighbors)
	assert.InDelta(t, desired.X(), out.X(), 1e-3)
	assert.InDelta(t, desired.Y(), out.Y(), 1e-3)
	assert.InDelta(t, desired.Z(), out.Z(), 1e-3)
}

func TestPredictCollisionsHeadOnFlagsReplan(t *testing.T) {
	la := New(config.Default())
	pos := d3.NewVec3XYZ(0, 0, 0)
	vel := d3.NewVec3XYZ(1, 0, 0)
	neighbors := []Neighbor{
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(1, 0, 0), Velocity: d3.NewVec3XYZ(-1, 0, 0)}, Distance: 1},
	}
	preds := la.PredictCollisions(pos, vel, neighbors)
	require.Len(t, preds, 1)
	assert.True(t, preds[0].ShouldReplan)
	assert.InDelta(t, 0.5, preds[0].TimeToClosest, 1e-3)
	assert.InDelta(t, 0, preds[0].MinSeparation, 1e-3)
}

func TestPredictCollisionsDivergingDoesNotReplan(t *testing.T) {
	la := New(config.Default())
	pos := d3.NewVec3XYZ(0, 0, 0)
	vel := d3.NewVec3XYZ(-1, 0, 0)
	neighbors := []Neighbor{
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(1, 0, 0), Velocity: d3.NewVec3XYZ(1, 0, 0)}, Distance: 1},
	}
	preds := la.PredictCollisions(pos, vel, neighbors)
	require.Len(t, preds, 1)
	assert.False(t, preds[0].ShouldReplan)
	assert.Equal(t, float32(0), preds[0].TimeToClosest)
}

func TestCanAvoidLocallyFalseWhenThreeNeighborsBlockCone(t *testing.T) {
	cfg := config.Default()
	la := New(cfg)
	curr := d3.NewVec3XYZ(0, 0, 0)
	target := d3.NewVec3XYZ(10, 0, 0)

	r := cfg.SeparationRadius * 0.5
	neighbors := []Neighbor{
		{Entity: Entity{ID: 1, Position: d3.NewVec3XYZ(r, 0, 0)}, Distance: r},
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(r, 0, r*0.2)}, Distance: r},
		{Entity: Entity{ID: 3, Position: d3.NewVec3XYZ(r, 0, -r*0.2)}, Distance: r},
	}
	assert.False(t, la.CanAvoidLocally(curr, target, neighbors))
}

func TestCanAvoidLocallyTrueWithTwoBlockers(t *testing.T) {
	cfg := config.Default()
	la := New(cfg)
	curr := d3.NewVec3XYZ(0, 0, 0)
	target := d3.NewVec3XYZ(10, 0, 0)

	r := cfg.SeparationRadius * 0.5
	neighbors := []Neighbor{
		{Entity: Entity{ID: 1, Position: d3.NewVec3XYZ(r, 0, 0)}, Distance: r},
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(r, 0, r*0.2)}, Distance: r},
	}
	assert.True(t, la.CanAvoidLocally(curr, target, neighbors))
}

func TestCanAvoidLocallyTrueWhenNeighborsBehind(t *testing.T) {
	cfg := config.Default()
	la := New(cfg)
	curr := d3.NewVec3XYZ(0, 0, 0)
	target := d3.NewVec3XYZ(10, 0, 0)

	r := cfg.SeparationRadius * 0.5
	neighbors := []Neighbor{
		{Entity: Entity{ID: 1, Position: d3.NewVec3XYZ(-r, 0, 0)}, Distance: r},
		{Entity: Entity{ID: 2, Position: d3.NewVec3XYZ(-r, 0, r*0.2)}, Distance: r},
		{Entity: Entity{ID: 3, Position: d3.NewVec3XYZ(-r, 0, -r*0.2)}, Distance: r},
	}
	assert.True(t, la.CanAvoidLocally(curr, target, neighbors))
}

func TestResetClearsPreviousRegistrations(t *testing.T) {
	la := New(config.Default())
	la.Register(Entity{ID: 1, Position: d3.NewVec3XYZ(0, 0, 0), Radius: 0.5})
	la.Reset()
	ns := la.Neighbors(d3.NewVec3XYZ(0, 0, 0), -1, 10)
	assert.Empty(t, ns)
}
