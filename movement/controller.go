// Package movement implements the per-tick control loop that ties the
// navmesh pathfinder, path validator, local avoidance, and character
// controller into agent motion (spec.md §4.F). It is the single writer of
// MovementSession state and the only place that touches multiple agents'
// data in the same tick.
package movement

import (
	"sort"

	"github.com/arl/assertgo"
	"github.com/arl/math32"

	"github.com/arl/gogeo/f32/d3"
	"go.uber.org/zap"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/avoidance"
	"github.com/arl/navmove/character"
	"github.com/arl/navmove/config"
	"github.com/arl/navmove/navmesh"
	"github.com/arl/navmove/pathing"
	"github.com/arl/navmove/physics"
)

// ControllerKind selects which character.Controller implementation a
// registered agent uses (spec.md §4.E, §9 "polymorphic character
// controller").
type ControllerKind int

const (
	VelocityBased ControllerKind = iota
	MotorBased
)

// spawnProjectionLimit is how far an agent may be from any navmesh polygon
// at spawn, per axis of the NavQuery search box, before request_movement
// teleports it onto the mesh
// (spec.md §4.F Fail-safes).
const spawnProjectionLimit = 2.0

// Controller is the MovementController: it owns every registered Agent's
// MovementSession and character.Controller, and drives them all forward
// one dt at a time (spec.md §4.F).
type Controller struct {
	Engine    physics.Engine
	Query     *navmesh.NavQuery
	Pathing   *pathing.Service
	Avoidance *avoidance.LocalAvoidance
	Contacts  *physics.ContactBuffer
	Events    physics.EventSink
	Config    config.Configuration
	Log       *zap.SugaredLogger

	agents     map[agent.ID]*agent.Agent
	characters map[agent.ID]character.Controller
	sessions   map[agent.ID]*MovementSession
	pushables  map[agent.ID]float32

	simTime float32
}

// New returns an empty Controller wired to its collaborators.
func New(eng physics.Engine, query *navmesh.NavQuery, svc *pathing.Service, avoid *avoidance.LocalAvoidance, contacts *physics.ContactBuffer, events physics.EventSink, cfg config.Configuration, log *zap.SugaredLogger) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Controller{
		Engine: eng, Query: query, Pathing: svc, Avoidance: avoid,
		Contacts: contacts, Events: events, Config: cfg, Log: log,
		agents:     make(map[agent.ID]*agent.Agent),
		characters: make(map[agent.ID]character.Controller),
		sessions:   make(map[agent.ID]*MovementSession),
		pushables:  make(map[agent.ID]float32),
	}
}

// RegisterAgent adds ag to the Controller with the given control law. It
// does not register the capsule with the physics engine — that's the
// caller's responsibility since it also owns body creation parameters not
// visible here (mass, static flag).
func (c *Controller) RegisterAgent(ag *agent.Agent, kind ControllerKind) {
	c.agents[ag.ID] = ag
	switch kind {
	case MotorBased:
		c.characters[ag.ID] = character.NewMotorController(ag, c.Engine, c.Config)
	default:
		c.characters[ag.ID] = character.NewVelocityController(ag, c.Engine, c.Config)
	}
}

// RemoveAgent drops ag from every map the Controller keeps, including any
// active session.
func (c *Controller) RemoveAgent(id agent.ID) {
	if ctrl, ok := c.characters[id]; ok {
		ctrl.RemoveAgent()
	}
	delete(c.agents, id)
	delete(c.characters, id)
	delete(c.sessions, id)
	delete(c.pushables, id)
}

// orderedAgentIDs returns every registered agent id in ascending order —
// the deterministic iteration order spec.md §5 requires so the detour
// protocol's tie-break is consistent across the tick.
func (c *Controller) orderedAgentIDs() []agent.ID {
	ids := make([]agent.ID, 0, len(c.agents))
	for id := range c.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Update advances every registered agent by dt: drains queued contact
// events, refreshes local-avoidance registrations, then runs the per-agent
// tick algorithm in ascending-id order (spec.md §4.F).
func (c *Controller) Update(dt float32) {
	c.drainContacts()
	c.refreshAvoidance()
	c.tickPushables(dt)

	ids := c.orderedAgentIDs()
	for _, id := range ids {
		c.tickAgent(id, dt)
	}

	c.simTime += dt
}

func (c *Controller) drainContacts() {
	if c.Contacts == nil {
		return
	}
	for _, ev := range c.Contacts.Drain() {
		ctrl, ok := c.characters[agent.ID(ev.DynamicID)]
		if !ok || !physics.IsGroundContact(ev.Normal) {
			continue
		}
		if ev.Removed {
			ctrl.NotifyGroundContactRemoved(int64(ev.StaticID))
		} else {
			ctrl.NotifyGroundContact(int64(ev.StaticID))
		}
	}
}

func (c *Controller) refreshAvoidance() {
	if c.Avoidance == nil {
		return
	}
	c.Avoidance.Reset()
	for id, ag := range c.agents {
		c.refreshAgentPhysics(ag)
		c.Avoidance.Register(avoidance.Entity{
			ID:       id,
			Position: ag.Position,
			Velocity: ag.LinearVelocity,
			Radius:   ag.Config.Radius,
		})
	}
}

func (c *Controller) refreshAgentPhysics(ag *agent.Agent) {
	h := physics.BodyHandle(ag.BodyHandle)
	ag.Position = c.Engine.Position(h)
	ag.LinearVelocity = c.Engine.Velocity(h)
}

func (c *Controller) tickPushables(dt float32) {
	for id, remaining := range c.pushables {
		remaining -= dt
		if remaining <= 0 {
			ag, ok := c.agents[id]
			if ok {
				c.Engine.SetPushable(physics.BodyHandle(ag.BodyHandle), false)
			}
			delete(c.pushables, id)
			continue
		}
		c.pushables[id] = remaining
	}
}

func (c *Controller) emit(ev physics.Event) {
	if c.Events != nil {
		c.Events.Emit(ev)
	}
}

// tickAgent runs spec.md §4.F steps 1-11 for one agent.
func (c *Controller) tickAgent(id agent.ID, dt float32) {
	ag := c.agents[id]
	ctrl := c.characters[id]
	assert.True(ag != nil && ctrl != nil, "tickAgent: id %d in orderedAgentIDs but missing from agents/characters map", id)

	// 1. State refresh.
	ctrl.UpdateState(dt)

	session, hasSession := c.sessions[id]

	// An agent with no motion step to run leaves RECOVERING as soon as it is
	// stable; an agent with an active session does so in moveRecovering.
	if (!hasSession || session.Completed) && ctrl.IsRecovering() && ctrl.IsStable() {
		ctrl.SetGrounded()
	}

	// 2. Idle agents.
	if !hasSession {
		ctrl.ApplyIdleGrounding()
		return
	}

	// 3. Completed sessions.
	if session.Completed {
		c.zeroHorizontalVelocity(ag)
		return
	}

	// 4. Path exhausted.
	if session.CurrentWaypointIdx >= len(session.Waypoints) {
		c.completeSession(id, session)
		return
	}

	// 5. Throttled path validation (stubbed per spec.md §9 open question
	// (a): the source ships this as a no-op, so the core only resets the
	// cooldown timer).
	session.LastValidationElapsed += dt
	if session.LastValidationElapsed >= c.Config.PathValidationInterval {
		session.LastValidationElapsed = 0
	}

	halfHeight := ag.Config.HalfHeight()

	// 6. Wrong-floor detection.
	waypoint, _ := session.CurrentWaypoint()
	currentGroundY := ag.Position.Y() - halfHeight
	targetGroundY := waypoint.Y()
	onSlope := isOnSlope(currentGroundY, targetGroundY, horizontalDist(ag.Position, waypoint))
	floorTolerance := c.Config.FloorLevelTolerance
	if onSlope {
		floorTolerance *= 2
	}
	if math32.Abs(currentGroundY-targetGroundY) > floorTolerance {
		c.replan(id, ag, session)
		return
	}

	// 7. Collision prediction + detour protocol (GROUNDED only).
	effectiveSpeed := ag.MaxSpeed
	var neighbors []avoidance.Neighbor
	criticalThisTick := false
	if ctrl.IsGrounded() && c.Config.EnableLocalAvoidance && c.Avoidance != nil {
		neighbors = c.Avoidance.Neighbors(ag.Position, id, c.Config.MaxAvoidanceNeighbors)
		preds := c.Avoidance.PredictCollisions(ag.Position, ag.LinearVelocity, neighbors)
		for _, p := range preds {
			if !p.ShouldReplan {
				continue
			}
			criticalThisTick = true
			if id < p.NeighborID {
				c.insertDetour(ag, session, p.NeighborID)
			} else {
				effectiveSpeed = ag.MaxSpeed * 0.75
			}
		}
	}

	// 8. Waypoint advance.
	waypoint, _ = session.CurrentWaypoint()
	threshold := c.Config.WaypointReachedThreshold
	if session.IsLastWaypoint() {
		threshold = c.Config.DestinationReachedThreshold
	}
	if horizontalDist(ag.Position, waypoint) <= threshold {
		c.advanceWaypoint(id, session)
		if session.CurrentWaypointIdx >= len(session.Waypoints) {
			c.completeSession(id, session)
			return
		}
		waypoint, _ = session.CurrentWaypoint()
	}

	switch ag.State {
	case agent.Grounded:
		c.moveGrounded(id, ag, ctrl, session, waypoint, effectiveSpeed, neighbors, criticalThisTick)
	case agent.Recovering:
		c.moveRecovering(id, ag, ctrl, session)
	case agent.Airborne:
		// 11. Physics owns the trajectory.
	}
}

func (c *Controller) zeroHorizontalVelocity(ag *agent.Agent) {
	h := physics.BodyHandle(ag.BodyHandle)
	v := c.Engine.Velocity(h)
	next := d3.NewVec3XYZ(0, v.Y(), 0)
	ag.LinearVelocity = next
	c.Engine.SetVelocity(h, next)
}

func (c *Controller) completeSession(id agent.ID, session *MovementSession) {
	session.Completed = true
	ag := c.agents[id]
	c.emit(physics.Event{Kind: physics.EventDestinationReached, AgentID: int(id), Position: ag.Position})
}

func (c *Controller) advanceWaypoint(id agent.ID, session *MovementSession) {
	ag := c.agents[id]
	next := session.CurrentWaypointIdx + 1
	for next < len(session.Waypoints) && horizontalDist(ag.Position, session.Waypoints[next]) <= 0.1 {
		next++
	}
	session.CurrentWaypointIdx = next

	// A detour waypoint is consumed once the session has moved past it; per
	// spec.md §9 open question (c), a session may take one further detour
	// only after the previous one has been consumed (current_waypoint_idx
	// > 0), matching the source's observed behavior.
	if session.DetourInserted && session.CurrentWaypointIdx > 0 {
		session.DetourInserted = false
		session.ConflictID = ""
	}

	c.emit(physics.Event{Kind: physics.EventMovementProgress, AgentID: int(id), Progress: session.Progress()})
}

// isOnSlope mirrors spec.md §4.F step 9's is_on_slope test, reused by
// step 6's floor-tolerance doubling.
func isOnSlope(fromY, toY, horizontal float32) bool {
	return math32.Abs(toY-fromY) > 0.5 && horizontal > 0.1
}

func horizontalDist(a, b d3.Vec3) float32 {
	dx := a.X() - b.X()
	dz := a.Z() - b.Z()
	return math32.Sqrt(dx*dx + dz*dz)
}
