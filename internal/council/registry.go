package council

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionConfig describes one deliberation to start.
type SessionConfig struct {
	ID              string // assigned when empty
	Mission         string
	Profile         string
	MaxRounds       int
	DecisionTimeout time.Duration
}

// DefaultMaxRounds bounds the cycle when the caller does not say otherwise.
const DefaultMaxRounds = 3

// Registry owns every live session, keyed by session id. It exists solely so
// external resolvers can find a session's pending gate; it is held by the
// composition root and accessed only through methods, never as ambient
// state. Sessions run as independent tasks and share nothing else.
type Registry struct {
	ports Ports
	sink  EventSink
	log   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	engine  *Engine
	started bool
	done    chan struct{}
	runErr  error
}

// NewRegistry creates a registry whose sessions publish to sink and call the
// given ports.
func NewRegistry(ports Ports, sink EventSink, log *zap.Logger) *Registry {
	if sink == nil {
		sink = NopSink
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		ports:    ports,
		sink:     sink,
		log:      log,
		sessions: make(map[string]*managedSession),
	}
}

// Create registers a new session and returns its id. The engine does not run
// until Start (or Run) is called.
func (r *Registry) Create(cfg SessionConfig) (string, error) {
	if cfg.Mission == "" {
		return "", fmt.Errorf("create session: mission is required")
	}
	if cfg.ID == "" {
		cfg.ID = "council-" + uuid.NewString()[:8]
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}

	state := NewSessionState(cfg.ID, cfg.Mission, cfg.Profile, cfg.MaxRounds)
	engine := NewEngine(EngineConfig{
		State:           state,
		Ports:           r.ports,
		Sink:            r.sink,
		Logger:          r.log,
		DecisionTimeout: cfg.DecisionTimeout,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[cfg.ID]; exists {
		return "", fmt.Errorf("create session %s: id already registered", cfg.ID)
	}
	r.sessions[cfg.ID] = &managedSession{engine: engine, done: make(chan struct{})}
	return cfg.ID, nil
}

// Start launches the session's engine as its own task. Starting twice is an
// error; the engine runs to completion or escalation regardless of observers.
func (r *Registry) Start(ctx context.Context, id string) error {
	r.mu.Lock()
	ms, ok := r.sessions[id]
	if ok && ms.started {
		r.mu.Unlock()
		return fmt.Errorf("session %s already started", id)
	}
	if ok {
		ms.started = true
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	go func() {
		defer close(ms.done)
		ms.runErr = ms.engine.Run(ctx)
	}()
	return nil
}

// Run executes the session synchronously in the calling goroutine.
func (r *Registry) Run(ctx context.Context, id string) error {
	r.mu.Lock()
	ms, ok := r.sessions[id]
	if ok && ms.started {
		r.mu.Unlock()
		return fmt.Errorf("session %s already started", id)
	}
	if ok {
		ms.started = true
	}
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	defer close(ms.done)
	ms.runErr = ms.engine.Run(ctx)
	return ms.runErr
}

// Done returns a channel closed when the session's engine finishes.
func (r *Registry) Done(id string) (<-chan struct{}, error) {
	ms, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	return ms.done, nil
}

// Err returns the engine's run error once the session has finished. The
// result is written before the done channel closes, so it may only be read
// after that; calling Err on a running session is an error.
func (r *Registry) Err(id string) (error, error) {
	ms, err := r.lookup(id)
	if err != nil {
		return nil, err
	}
	select {
	case <-ms.done:
		return ms.runErr, nil
	default:
		return nil, fmt.Errorf("session %s still running", id)
	}
}

// SubmitDecision resolves the session's pending gate with value and an
// optional note. Submissions against an absent or already-resolved gate
// return ErrNoPendingDecision and change nothing.
func (r *Registry) SubmitDecision(id, value, note string) error {
	ms, err := r.lookup(id)
	if err != nil {
		return err
	}
	gate := ms.engine.State().PendingGate()
	if gate == nil {
		return ErrNoPendingDecision
	}
	return gate.Resolve(Resolution{Value: value, Note: note})
}

// ResolveEscalation applies one out-of-band remediation action to a session
// that terminated ESCALATED. force-A/force-B adopt the last payload of the
// respective side, manual-merge adopts the supplied payload, split and abort
// close the session unadopted.
func (r *Registry) ResolveEscalation(id, action string, payload *Proposal) error {
	ms, err := r.lookup(id)
	if err != nil {
		return err
	}
	state := ms.engine.State()
	if state.Phase() != PhaseEscalated {
		return ErrNotEscalated
	}

	proposal, objection := state.table()
	switch action {
	case ActionForceA:
		if err := state.adopt(proposal, "proposal"); err != nil {
			return err
		}
		state.setEndReason("escalation resolved: " + action)
		state.setPhase(PhaseAdopted)
	case ActionForceB:
		if err := state.adopt(objection, "objection"); err != nil {
			return err
		}
		state.setEndReason("escalation resolved: " + action)
		state.setPhase(PhaseAdopted)
	case ActionManualMerge:
		if payload == nil {
			return fmt.Errorf("resolve escalation: manual-merge requires a payload")
		}
		if err := state.adopt(*payload, "manual-merge"); err != nil {
			return err
		}
		state.setEndReason("escalation resolved: " + action)
		state.setPhase(PhaseAdopted)
	case ActionSplit, ActionAbort:
		state.setEndReason("escalation resolved: " + action)
		state.setPhase(PhaseRejected)
	default:
		return fmt.Errorf("resolve escalation: %w: %q", ErrInvalidOption, action)
	}

	r.log.Info("escalation resolved", zap.String("session", id), zap.String("action", action))
	return nil
}

// Snapshot returns a read-only copy of a session's progress.
func (r *Registry) Snapshot(id string) (Snapshot, error) {
	ms, err := r.lookup(id)
	if err != nil {
		return Snapshot{}, err
	}
	return ms.engine.State().Snapshot(), nil
}

// Sessions lists all registered session ids.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		out = append(out, id)
	}
	return out
}

func (r *Registry) lookup(id string) (*managedSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ms, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return ms, nil
}
