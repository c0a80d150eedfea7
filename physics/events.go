package physics

import "github.com/arl/gogeo/f32/d3"

// EventKind identifies one of the five public lifecycle events a
// MovementController emits (spec.md §4.F).
type EventKind int

const (
	EventMovementStarted EventKind = iota
	EventDestinationReached
	EventPathReplanned
	EventPathBlocked
	EventMovementProgress
)

func (k EventKind) String() string {
	switch k {
	case EventMovementStarted:
		return "movement-started"
	case EventDestinationReached:
		return "destination-reached"
	case EventPathReplanned:
		return "path-replanned"
	case EventPathBlocked:
		return "path-blocked"
	case EventMovementProgress:
		return "movement-progress"
	default:
		return "unknown"
	}
}

// Event is a single lifecycle notification for one agent. Fields not
// relevant to Kind are left zero-valued.
type Event struct {
	Kind     EventKind
	AgentID  int
	Start    d3.Vec3
	End      d3.Vec3
	Position d3.Vec3
	Progress float32
}

// EventSink receives lifecycle events as they're emitted. A per-tick
// buffer implementation avoids the observer-pattern cycles a direct
// callback-into-controller design risks (spec.md §9).
type EventSink interface {
	Emit(Event)
}

// EventBuffer is the default EventSink: it accumulates events for the
// caller to drain once per tick, after all agents' motion writes for that
// tick are complete (spec.md §5 ordering guarantee).
type EventBuffer struct {
	events []Event
}

// Emit appends ev to the buffer.
func (b *EventBuffer) Emit(ev Event) {
	b.events = append(b.events, ev)
}

// Drain returns every buffered event and empties the buffer.
func (b *EventBuffer) Drain() []Event {
	events := b.events
	b.events = nil
	return events
}
