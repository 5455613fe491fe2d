package council

import "time"

// EventType tags one externally observable transition.
type EventType string

const (
	EventPhase                    EventType = "PHASE"
	EventProposal                 EventType = "PROPOSAL"
	EventObjection                EventType = "OBJECTION"
	EventMerged                   EventType = "MERGED"
	EventValidation               EventType = "VALIDATION"
	EventPreMortem                EventType = "PRE_MORTEM"
	EventAwaitingDecision         EventType = "AWAITING_DECISION"
	EventAwaitingMergeDecision    EventType = "AWAITING_MERGE_DECISION"
	EventAwaitingPreMortemChoice  EventType = "AWAITING_PREMORTEM_DECISION"
	EventComplete                 EventType = "COMPLETE"
	EventEscalated                EventType = "ESCALATED"
	EventError                    EventType = "ERROR"
)

// Event is one immutable record in a session's ordered event stream. The
// stream is the only channel by which external observers learn about a
// session; nothing outside the engine mutates session state directly.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	Timestamp time.Time      `json:"timestamp"`
	Phase     Phase          `json:"phase,omitempty"`
	Round     int            `json:"round,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventSink receives a session's events in exact production order. Delivery
// is best-effort: a sink must never block the engine, and closing every
// observer does not cancel a running session.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(Event)

// Publish implements EventSink.
func (f SinkFunc) Publish(ev Event) { f(ev) }

// NopSink discards all events.
var NopSink EventSink = SinkFunc(func(Event) {})
