package avoidance

import (
	"sort"

	"github.com/arl/gogeo/f32/d3"
	"github.com/arl/math32"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/config"
)

// Entity is the minimal per-tick snapshot LocalAvoidance needs from a
// registered dynamic agent: enough to steer around it without owning it.
type Entity struct {
	ID       agent.ID
	Position d3.Vec3
	Velocity d3.Vec3
	Radius   float32
}

// Neighbor pairs an Entity with its distance to the querying agent.
type Neighbor struct {
	Entity
	Distance float32
}

// CollisionPrediction is the outcome of assuming a neighbor and the querying
// agent both hold their current velocity.
type CollisionPrediction struct {
	NeighborID    agent.ID
	TimeToClosest float32
	MinSeparation float32
	ShouldReplan  bool
}

// criticalTimeHorizon is how soon a predicted closest approach must occur,
// while already inside SeparationRadius, to be flagged as imminent.
const criticalTimeHorizon = 1.0

// LocalAvoidance finds neighbors within a radius, computes separation
// steering and predicts imminent collisions for a small neighbor set
// (spec.md §4.D). It holds no long-lived per-agent state: every tick the
// caller Resets it and Registers every dynamic agent before querying.
type LocalAvoidance struct {
	grid     *Grid
	entities map[agent.ID]Entity
	cfg      config.Configuration
}

// New returns a LocalAvoidance sized from cfg.LocalAvoidanceRadius.
func New(cfg config.Configuration) *LocalAvoidance {
	cellSize := cfg.LocalAvoidanceRadius
	if cellSize <= 0 {
		cellSize = 5
	}
	return &LocalAvoidance{
		grid:     NewGrid(cellSize),
		entities: make(map[agent.ID]Entity),
		cfg:      cfg,
	}
}

// Reset clears the per-tick registration, ready to be rebuilt.
func (la *LocalAvoidance) Reset() {
	la.grid.Clear()
	for k := range la.entities {
		delete(la.entities, k)
	}
}

// Register adds a dynamic entity for this tick's neighbor queries.
func (la *LocalAvoidance) Register(e Entity) {
	la.entities[e.ID] = e
	la.grid.Add(int(e.ID), e.Position.X(), e.Position.Z(), e.Radius)
}

// Neighbors returns up to maxK dynamic entities within
// cfg.LocalAvoidanceRadius of position, nearest first, excluding excludeID.
func (la *LocalAvoidance) Neighbors(position d3.Vec3, excludeID agent.ID, maxK int) []Neighbor {
	radius := la.cfg.LocalAvoidanceRadius
	ids := la.grid.Query(position.X(), position.Z(), radius)

	var out []Neighbor
	for _, id := range ids {
		aid := agent.ID(id)
		if aid == excludeID {
			continue
		}
		e, ok := la.entities[aid]
		if !ok {
			continue
		}
		d := position.Dist(e.Position)
		if d > radius {
			continue
		}
		out = append(out, Neighbor{Entity: e, Distance: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if maxK > 0 && len(out) > maxK {
		out = out[:maxK]
	}
	return out
}

// AvoidanceVelocity blends desired with an inverse-square separation force
// from neighbors within cfg.SeparationRadius, then renormalizes to
// desired's original magnitude: avoidance only ever changes direction, not
// speed (spec.md §4.D).
func (la *LocalAvoidance) AvoidanceVelocity(position, desired d3.Vec3, neighbors []Neighbor) d3.Vec3 {
	desiredSpeed := desired.Len()
	if desiredSpeed < 1e-6 {
		return d3.NewVec3From(desired)
	}

	separation := d3.NewVec3()
	for _, n := range neighbors {
		diff := position.Sub(n.Position)
		diff.SetY(0)
		distSqr := diff.LenSqr()
		if distSqr < 1e-9 || n.Distance > la.cfg.SeparationRadius {
			continue
		}
		dist := math32.Sqrt(distSqr)
		weight := la.cfg.AvoidanceStrength / (distSqr + 1e-3)
		separation = separation.SAdd(diff, weight/dist)
	}

	blended := desired.Add(separation)
	blendedLen := blended.Len()
	if blendedLen < 1e-6 {
		return d3.NewVec3From(desired)
	}
	return blended.Scale(desiredSpeed / blendedLen)
}

// PredictCollisions computes, for each neighbor, the time of closest
// approach assuming both parties hold their current velocity, flagging
// ShouldReplan when that time is imminent (within [0, criticalTimeHorizon))
// and the resulting separation is inside cfg.SeparationRadius. A negative
// time means the pair is already separating (or has no relative motion),
// not approaching, and is reported as 0 with ShouldReplan left false
// regardless of current distance.
func (la *LocalAvoidance) PredictCollisions(pos, vel d3.Vec3, neighbors []Neighbor) []CollisionPrediction {
	preds := make([]CollisionPrediction, 0, len(neighbors))
	for _, n := range neighbors {
		relPos := pos.Sub(n.Position)
		relVel := vel.Sub(n.Velocity)
		relPos.SetY(0)
		relVel.SetY(0)

		t := closestApproachTime(relPos, relVel)
		approaching := t >= 0
		clamped := t
		if clamped < 0 {
			clamped = 0
		}
		closest := relPos.Add(relVel.Scale(clamped))
		sep := closest.Len()

		preds = append(preds, CollisionPrediction{
			NeighborID:    n.ID,
			TimeToClosest: clamped,
			MinSeparation: sep,
			ShouldReplan:  approaching && clamped < criticalTimeHorizon && sep < la.cfg.SeparationRadius,
		})
	}
	return preds
}

// closestApproachTime returns the time at which two points starting relPos
// apart and moving at relVel reach minimum separation. A negative result
// means that time is in the past: the pair is separating, not approaching.
// With (near) zero relVel the separation never changes and -1 is returned.
func closestApproachTime(relPos, relVel d3.Vec3) float32 {
	speedSqr := relVel.LenSqr()
	if speedSqr < 1e-9 {
		return -1
	}
	return -relPos.Dot(relVel) / speedSqr
}

// coneHalfAngleCos is cos(45 degrees): the half-angle of the logjam cone
// ahead of the agent's direction to its target.
var coneHalfAngleCos = math32.Cos(45 * math32.Pi / 180)

// CanAvoidLocally reports whether fewer than 3 neighbors occupy a ±45
// degree cone toward target and lie inside cfg.SeparationRadius. Three or
// more is treated as a real logjam the caller should replan around rather
// than steer through (spec.md §4.D).
func (la *LocalAvoidance) CanAvoidLocally(curr, target d3.Vec3, neighbors []Neighbor) bool {
	toTarget := target.Sub(curr)
	toTarget.SetY(0)
	if toTarget.Len() < 1e-6 {
		return true
	}
	toTarget.Normalize()

	blocking := 0
	for _, n := range neighbors {
		if n.Distance > la.cfg.SeparationRadius {
			continue
		}
		toNeighbor := n.Position.Sub(curr)
		toNeighbor.SetY(0)
		if toNeighbor.Len() < 1e-6 {
			continue
		}
		toNeighbor.Normalize()
		if toTarget.Dot(toNeighbor) >= coneHalfAngleCos {
			blocking++
		}
	}
	return blocking < 3
}
