package movement

import (
	"testing"

	"github.com/arl/gogeo/f32/d3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arl/navmove/agent"
	"github.com/arl/navmove/avoidance"
	"github.com/arl/navmove/config"
	"github.com/arl/navmove/navmesh"
	"github.com/arl/navmove/pathing"
	"github.com/arl/navmove/physics"
)

// fakePhysics is a minimal physics.Engine double that stores each body's
// position/velocity in maps, with no gravity or collision simulation.
// Tests drive the passage of time by calling Controller.Update directly.
type fakePhysics struct {
	nextHandle physics.BodyHandle
	positions  map[physics.BodyHandle]d3.Vec3
	velocities map[physics.BodyHandle]d3.Vec3
	pushable   map[physics.BodyHandle]bool
}

func newFakePhysics() *fakePhysics {
	return &fakePhysics{
		positions:  make(map[physics.BodyHandle]d3.Vec3),
		velocities: make(map[physics.BodyHandle]d3.Vec3),
		pushable:   make(map[physics.BodyHandle]bool),
	}
}

func (f *fakePhysics) RegisterCapsule(id int, position d3.Vec3, radius, height, mass float32, static bool) physics.BodyHandle {
	f.nextHandle++
	h := f.nextHandle
	f.positions[h] = position
	f.velocities[h] = d3.NewVec3()
	return h
}
func (f *fakePhysics) Position(h physics.BodyHandle) d3.Vec3 { return f.positions[h] }
func (f *fakePhysics) Velocity(h physics.BodyHandle) d3.Vec3 { return f.velocities[h] }
func (f *fakePhysics) SetVelocity(h physics.BodyHandle, v d3.Vec3) {
	f.velocities[h] = v
}
func (f *fakePhysics) SetPosition(h physics.BodyHandle, p d3.Vec3) {
	f.positions[h] = p
}
func (f *fakePhysics) ApplyImpulse(h physics.BodyHandle, impulse d3.Vec3) {
	f.velocities[h] = f.velocities[h].Add(impulse)
}
func (f *fakePhysics) SetPushable(h physics.BodyHandle, pushable bool) {
	f.pushable[h] = pushable
}
func (f *fakePhysics) EntitiesInRadius(center d3.Vec3, radius float32) []int { return nil }

// integrate advances every registered body's position by velocity*dt, the
// way a real engine would between ticks — the fake never applies gravity,
// so an unmanaged vertical velocity simply carries the body forever.
func (f *fakePhysics) integrate(dt float32) {
	for h, p := range f.positions {
		v := f.velocities[h]
		f.positions[h] = p.Add(v.Scale(dt))
	}
}

func flatGroundMesh(minX, minZ, maxX, maxZ, y float32) (*navmesh.NavMesh, *navmesh.NavQuery) {
	mesh := navmesh.New()
	mesh.AddPoly([]d3.Vec3{
		d3.NewVec3XYZ(minX, y, minZ),
		d3.NewVec3XYZ(maxX, y, minZ),
		d3.NewVec3XYZ(maxX, y, maxZ),
		d3.NewVec3XYZ(minX, y, maxZ),
	})
	filter := navmesh.NewStandardFilter()
	return mesh, navmesh.NewQuery(mesh, filter)
}

// newTestHarness wires a Controller over a single flat ground square with
// one grounded capsule agent, matching spec.md §8's "flat ground settle"
// baseline scenario.
func newTestHarness(t *testing.T) (*Controller, *fakePhysics, *agent.Agent) {
	t.Helper()
	mesh, query := flatGroundMesh(-50, -50, 50, 50, 0)
	filter := navmesh.NewStandardFilter()
	cfg := config.Default()

	svc := pathing.New(query, mesh, filter, cfg, nil)
	avoid := avoidance.New(cfg)
	contacts := &physics.ContactBuffer{}
	events := &physics.EventBuffer{}
	eng := newFakePhysics()

	ctrl := New(eng, query, svc, avoid, contacts, events, cfg, nil)

	ag := agent.New(1, agent.Config{MaxClimb: 0.5, MaxSlopeDeg: 45, Radius: 0.5, Height: 1.8}, 4.0, d3.NewVec3XYZ(0, 0.9, 0))
	h := eng.RegisterCapsule(int(ag.ID), ag.Position, ag.Config.Radius, ag.Config.Height, 1, false)
	ag.BodyHandle = uintptr(h)
	contacts.OnGroundContact(int(ag.ID), 0, d3.NewVec3XYZ(0, 1, 0), 0.01)

	ctrl.RegisterAgent(ag, VelocityBased)
	return ctrl, eng, ag
}

func TestRequestMovementAcrossFlatGroundReachesDestination(t *testing.T) {
	ctrl, eng, ag := newTestHarness(t)

	target := d3.NewVec3XYZ(10, 0.9, 0)
	resp := ctrl.RequestMovement(MovementRequest{AgentID: ag.ID, Target: target, MaxSpeed: 4})
	require.True(t, resp.Success, resp.Message)
	require.NotEmpty(t, resp.Path)

	const dt = 1.0 / 30.0
	for i := 0; i < 30*20; i++ {
		ctrl.Update(dt)
		eng.integrate(dt)
	}

	session, ok := ctrl.sessions[ag.ID]
	require.True(t, ok)
	assert.True(t, session.Completed, "agent should reach the destination within 20 simulated seconds")
	assert.InDelta(t, 10, ag.Position.X(), 1.0)
}

func TestRequestMovementEmitsMovementStarted(t *testing.T) {
	ctrl, _, ag := newTestHarness(t)
	resp := ctrl.RequestMovement(MovementRequest{AgentID: ag.ID, Target: d3.NewVec3XYZ(5, 0.9, 0), MaxSpeed: 4})
	require.True(t, resp.Success)

	events := ctrl.Events.(*physics.EventBuffer).Drain()
	require.NotEmpty(t, events)
	assert.Equal(t, physics.EventMovementStarted, events[0].Kind)
}

func TestRequestMovementUnreachableTargetFails(t *testing.T) {
	ctrl, _, ag := newTestHarness(t)
	resp := ctrl.RequestMovement(MovementRequest{AgentID: ag.ID, Target: d3.NewVec3XYZ(500, 0.9, 500), MaxSpeed: 4})
	assert.False(t, resp.Success)
}

func TestStopRemovesSession(t *testing.T) {
	ctrl, _, ag := newTestHarness(t)
	ctrl.RequestMovement(MovementRequest{AgentID: ag.ID, Target: d3.NewVec3XYZ(5, 0.9, 0), MaxSpeed: 4})
	ctrl.Stop(ag.ID)
	_, ok := ctrl.sessions[ag.ID]
	assert.False(t, ok)
}

func TestJumpIsNoOpWhenNotGrounded(t *testing.T) {
	ctrl, eng, ag := newTestHarness(t)
	ctrl.characters[ag.ID].SetAirborne()

	h := physics.BodyHandle(ag.BodyHandle)
	before := eng.Velocity(h)
	ctrl.Jump(ag.ID, 5)
	assert.Equal(t, before, eng.Velocity(h))
}

func TestJumpAppliesUpwardImpulseWhenGrounded(t *testing.T) {
	ctrl, eng, ag := newTestHarness(t)
	ctrl.Jump(ag.ID, 5)

	h := physics.BodyHandle(ag.BodyHandle)
	assert.Equal(t, float32(5), eng.Velocity(h).Y())
	assert.True(t, ctrl.characters[ag.ID].IsAirborne())
}

func TestPushMarksPushableForDurationThenClears(t *testing.T) {
	ctrl, eng, ag := newTestHarness(t)
	ctrl.Push(ag.ID, d3.NewVec3XYZ(1, 0, 0), 3, true, 1.0)

	h := physics.BodyHandle(ag.BodyHandle)
	assert.True(t, eng.pushable[h])

	ctrl.Update(0.6)
	assert.True(t, eng.pushable[h], "should remain pushable before duration elapses")

	ctrl.Update(0.6)
	assert.False(t, eng.pushable[h], "should clear once accumulated dt exceeds duration")
}

func TestDetourProtocolLowerIDYields(t *testing.T) {
	ctrl, eng, agLow := newTestHarness(t)

	agHigh := agent.New(2, agent.Config{MaxClimb: 0.5, MaxSlopeDeg: 45, Radius: 0.5, Height: 1.8}, 4.0, d3.NewVec3XYZ(10, 0.9, 0))
	h2 := eng.RegisterCapsule(int(agHigh.ID), agHigh.Position, agHigh.Config.Radius, agHigh.Config.Height, 1, false)
	agHigh.BodyHandle = uintptr(h2)
	ctrl.Contacts.OnGroundContact(int(agHigh.ID), 0, d3.NewVec3XYZ(0, 1, 0), 0.01)
	ctrl.RegisterAgent(agHigh, VelocityBased)

	ctrl.RequestMovement(MovementRequest{AgentID: agLow.ID, Target: d3.NewVec3XYZ(10, 0.9, 0), MaxSpeed: 4})
	ctrl.RequestMovement(MovementRequest{AgentID: agHigh.ID, Target: d3.NewVec3XYZ(0, 0.9, 0), MaxSpeed: 4})

	sessLow := ctrl.sessions[agLow.ID]
	require.NotNil(t, sessLow)

	// Stop at the first tick of detection: the flag clears again once the
	// detour waypoint has been consumed.
	const dt = 1.0 / 30.0
	for i := 0; i < 30*3 && !sessLow.DetourInserted; i++ {
		ctrl.Update(dt)
		eng.integrate(dt)
	}

	assert.True(t, sessLow.DetourInserted, "lower-id agent should have inserted a detour waypoint")
	assert.NotEmpty(t, sessLow.ConflictID)
}

func TestInsertDetourIsIdempotentPerConflict(t *testing.T) {
	ctrl, _, ag := newTestHarness(t)
	other := agent.New(2, agent.Config{Radius: 0.5, Height: 1.8}, 4, d3.NewVec3XYZ(1, 0.9, 0))
	ctrl.agents[other.ID] = other

	session := &MovementSession{TargetPosition: d3.NewVec3XYZ(10, 0.9, 0), Waypoints: []d3.Vec3{d3.NewVec3XYZ(5, 0.9, 0), d3.NewVec3XYZ(10, 0.9, 0)}}
	ctrl.insertDetour(ag, session, other.ID)
	require.True(t, session.DetourInserted)
	firstConflict := session.ConflictID
	firstWaypoints := session.Waypoints

	ctrl.insertDetour(ag, session, other.ID)
	assert.Equal(t, firstConflict, session.ConflictID)
	assert.Equal(t, firstWaypoints, session.Waypoints)
}

func TestOrderedAgentIDsAreAscending(t *testing.T) {
	ctrl, eng, ag := newTestHarness(t)
	second := agent.New(5, agent.Config{Radius: 0.5, Height: 1.8}, 4, d3.NewVec3XYZ(0, 0.9, 0))
	h := eng.RegisterCapsule(int(second.ID), second.Position, 0.5, 1.8, 1, false)
	second.BodyHandle = uintptr(h)
	ctrl.RegisterAgent(second, VelocityBased)

	third := agent.New(2, agent.Config{Radius: 0.5, Height: 1.8}, 4, d3.NewVec3XYZ(0, 0.9, 0))
	h3 := eng.RegisterCapsule(int(third.ID), third.Position, 0.5, 1.8, 1, false)
	third.BodyHandle = uintptr(h3)
	ctrl.RegisterAgent(third, VelocityBased)

	ids := ctrl.orderedAgentIDs()
	require.Len(t, ids, 3)
	assert.Equal(t, []agent.ID{ag.ID, third.ID, second.ID}, ids)
}
