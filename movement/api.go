package movement

import (
	"github.com/arl/gogeo/f32/d3"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/physics"
)

// replanCooldownElapsed guards against replan storms when an agent is
// pinned against an obstacle it can never resolve (spec.md §4.F step 6,
// §7 "ReplanExhausted").
func (c *Controller) replanCooldownElapsed(session *MovementSession) bool {
	return c.simTime-session.LastReplanTime >= c.Config.ReplanCooldown
}

// replan re-runs pathfinding from the agent's current position to the
// session's original target. On success the session's waypoint list is
// replaced and iteration restarts at 0. On failure the session is
// terminated (spec.md §4.F "Replan").
func (c *Controller) replan(id agent.ID, ag *agent.Agent, session *MovementSession) {
	if !c.replanCooldownElapsed(session) {
		return
	}
	session.LastReplanTime = c.simTime

	result, err := c.Pathing.FindPath(ag.Position, session.TargetPosition, ag.Config)
	if err != nil {
		c.Log.Infow("replan failed, session terminated", "agent", id, "error", err)
		delete(c.sessions, id)
		c.emit(physics.Event{Kind: physics.EventPathBlocked, AgentID: int(id), Position: ag.Position, End: session.TargetPosition})
		return
	}

	session.Waypoints = result.Waypoints
	session.CurrentWaypointIdx = 0
	session.DetourInserted = false
	session.ConflictID = ""
	c.emit(physics.Event{Kind: physics.EventPathReplanned, AgentID: int(id), Position: ag.Position, End: session.TargetPosition})
}

// RequestMovement starts (or replaces) req.AgentID's movement session
// toward req.Target (spec.md §4.F "request_movement", §4.F Fail-safes).
func (c *Controller) RequestMovement(req MovementRequest) MovementResponse {
	ag, ok := c.agents[req.AgentID]
	if !ok {
		return MovementResponse{Success: false, Message: "unknown agent"}
	}
	if req.MaxSpeed > 0 {
		ag.MaxSpeed = req.MaxSpeed
	}

	c.refreshAgentPhysics(ag)
	c.projectSpawnOntoNavmesh(ag)

	result, err := c.Pathing.FindPath(ag.Position, req.Target, ag.Config)
	if err != nil {
		return MovementResponse{Success: false, Message: err.Error(), ActualStart: ag.Position, ActualTarget: req.Target}
	}

	session := &MovementSession{
		TargetPosition: req.Target,
		Waypoints:      result.Waypoints,
	}
	c.sessions[req.AgentID] = session

	if ctrl, ok := c.characters[req.AgentID]; ok && ctrl.IsAirborne() {
		ctrl.SetGrounded()
	}

	c.emit(physics.Event{Kind: physics.EventMovementStarted, AgentID: int(req.AgentID), Start: ag.Position, End: req.Target})

	estimatedTime := float32(0)
	if ag.MaxSpeed > 0 {
		estimatedTime = result.TotalLength / ag.MaxSpeed
	}

	return MovementResponse{
		Success:         true,
		ActualStart:     ag.Position,
		ActualTarget:    req.Target,
		EstimatedLength: result.TotalLength,
		EstimatedTime:   estimatedTime,
		Path:            result.Waypoints,
	}
}

// projectSpawnOntoNavmesh implements the fail-safe from spec.md §4.F
// Fail-safes: an agent spawned more than spawnProjectionLimit from any
// navmesh surface is teleported onto the nearest valid position before
// pathfinding runs, rather than silently failing every move request.
func (c *Controller) projectSpawnOntoNavmesh(ag *agent.Agent) {
	limit := d3.NewVec3XYZ(spawnProjectionLimit, spawnProjectionLimit, spawnProjectionLimit)
	if c.Query.IsValid(ag.Position, limit) {
		return
	}
	h, v := c.Config.PathfindingSearchExtentsHorizontal, c.Config.PathfindingSearchExtentsVertical
	surface, ok := c.Query.FindNearestValidPosition(ag.Position, d3.NewVec3XYZ(h, v, h))
	if !ok {
		return
	}
	corrected := d3.NewVec3XYZ(surface.X(), ag.TargetY(surface.Y()), surface.Z())
	h := physics.BodyHandle(ag.BodyHandle)
	c.Engine.SetPosition(h, corrected)
	ag.Position = corrected
}

// Stop cancels id's active movement session, if any (spec.md §4.F).
func (c *Controller) Stop(id agent.ID) {
	delete(c.sessions, id)
}

// Jump applies an upward impulse and forces the agent airborne. A no-op if
// the agent isn't currently grounded (spec.md §4.F "jump").
func (c *Controller) Jump(id agent.ID, impulse float32) {
	ag, ok := c.agents[id]
	if !ok {
		return
	}
	ctrl, ok := c.characters[id]
	if !ok || !ctrl.IsGrounded() {
		return
	}
	h := physics.BodyHandle(ag.BodyHandle)
	c.Engine.ApplyImpulse(h, d3.NewVec3XYZ(0, impulse, 0))
	ctrl.SetAirborne()
}

// Knockback applies a directional impulse and forces the agent airborne,
// regardless of current state (spec.md §4.F "knockback").
func (c *Controller) Knockback(id agent.ID, dir d3.Vec3, force float32) {
	ag, ok := c.agents[id]
	if !ok {
		return
	}
	h := physics.BodyHandle(ag.BodyHandle)
	c.Engine.ApplyImpulse(h, dir.Scale(force))
	if ctrl, ok := c.characters[id]; ok {
		ctrl.SetAirborne()
	}
}

// Push applies a directional impulse without forcing a state change. When
// makePushable is true, the agent is marked pushable in the physics engine
// for duration seconds, after which Controller.Update clears the flag
// (spec.md §4.F "push", §9 open question (b): resolved here with an actual
// expiry timer rather than leaving the flag unmanaged).
func (c *Controller) Push(id agent.ID, dir d3.Vec3, force float32, makePushable bool, duration float32) {
	ag, ok := c.agents[id]
	if !ok {
		return
	}
	h := physics.BodyHandle(ag.BodyHandle)
	c.Engine.ApplyImpulse(h, dir.Scale(force))
	if makePushable {
		c.Engine.SetPushable(h, true)
		c.pushables[id] = duration
	}
}
