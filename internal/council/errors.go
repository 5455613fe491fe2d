package council

import "errors"

var (
	// ErrNoPendingDecision is returned when a decision is submitted for a
	// session with no open gate, or for a gate that was already resolved.
	// It is a caller-visible no-op, not a session failure.
	ErrNoPendingDecision = errors.New("no pending decision")

	// ErrInvalidOption is returned when a submitted value is outside the
	// gate's option domain. The gate stays pending.
	ErrInvalidOption = errors.New("value not in decision domain")

	// ErrSessionNotFound is returned by registry lookups for unknown ids.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNotEscalated is returned when an escalation action is submitted
	// for a session that is not in the ESCALATED phase.
	ErrNotEscalated = errors.New("session not escalated")

	// ErrTerminal is returned when an operation requires a live session
	// but the session already reached a terminal phase.
	ErrTerminal = errors.New("session already terminal")

	// ErrGateOpen marks the defect of opening a second gate while one is
	// pending. It never surfaces through normal control flow.
	ErrGateOpen = errors.New("decision gate already pending")

	// ErrAlreadyAdopted marks the defect of adopting twice.
	ErrAlreadyAdopted = errors.New("proposal already adopted")
)
