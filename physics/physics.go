// Package physics defines the integration contract between the Movement
// Core and an external rigid-body engine: the operations the core invokes
// on bodies, the contact callbacks it consumes, and the lifecycle events
// it exposes back to callers (spec.md §6, component G).
package physics

import "github.com/arl/gogeo/f32/d3"

// BodyHandle identifies a registered rigid body. The core treats it as
// opaque; only the engine implementation interprets its value.
type BodyHandle uintptr

// groundContactNormalY is the minimum upward component a contact normal
// must have to count as a ground contact rather than a wall/ceiling hit
// (spec.md §6: "≤ ~45° from vertical").
const groundContactNormalY = 0.7

// IsGroundContact reports whether a contact normal is steep enough (within
// ~45 degrees of vertical) to be treated as ground support.
func IsGroundContact(normal d3.Vec3) bool {
	return normal.Y() > groundContactNormalY
}

// Engine is the subset of a rigid-body world the Movement Core drives.
// Broadphase, narrowphase and constraint solving are entirely the
// implementation's concern; the core only ever sees handles and vectors.
type Engine interface {
	RegisterCapsule(id int, position d3.Vec3, radius, height, mass float32, static bool) BodyHandle
	Position(h BodyHandle) d3.Vec3
	Velocity(h BodyHandle) d3.Vec3
	SetVelocity(h BodyHandle, v d3.Vec3)
	SetPosition(h BodyHandle, p d3.Vec3)
	ApplyImpulse(h BodyHandle, impulse d3.Vec3)
	SetPushable(h BodyHandle, pushable bool)
	EntitiesInRadius(center d3.Vec3, radius float32) []int
}

// ContactEvent is a single ground-contact enter or remove notification,
// queued by the engine and drained by the core at the start of each tick
// (spec.md §5: callbacks must be serialized with movement.update).
type ContactEvent struct {
	DynamicID        int
	StaticID         int
	Normal           d3.Vec3
	PenetrationDepth float32
	Removed          bool
}

// ContactBuffer accumulates ContactEvents delivered from the physics
// thread and lets the single-threaded tick loop drain them atomically at
// the start of movement.update, per spec.md §5's serialization requirement.
type ContactBuffer struct {
	events []ContactEvent
}

// OnGroundContact queues a contact-enter callback. Non-ground contacts
// (walls, ceilings) are still queued; callers filter with IsGroundContact.
func (b *ContactBuffer) OnGroundContact(dynamicID, staticID int, normal d3.Vec3, penetration float32) {
	b.events = append(b.events, ContactEvent{DynamicID: dynamicID, StaticID: staticID, Normal: normal, PenetrationDepth: penetration})
}

// OnGroundContactRemoved queues a contact-remove callback.
func (b *ContactBuffer) OnGroundContactRemoved(dynamicID, staticID int, normal d3.Vec3) {
	b.events = append(b.events, ContactEvent{DynamicID: dynamicID, StaticID: staticID, Normal: normal, Removed: true})
}

// Drain returns every queued event and empties the buffer.
func (b *ContactBuffer) Drain() []ContactEvent {
	events := b.events
	b.events = nil
	return events
}
