package council

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// mergeInstruction is forwarded to the synthesizer when the arbiter asks for
// a merged position.
const mergeInstruction = "Draft a single position that keeps the proposal's ambition while answering every concern raised by the objection."

// EngineConfig wires one engine instance to its session and collaborators.
type EngineConfig struct {
	State  *SessionState
	Ports  Ports
	Sink   EventSink
	Logger *zap.Logger

	// DecisionTimeout, when non-zero, bounds every gate wait; an expired
	// gate resolves to the branch's reject-equivalent default. Zero means
	// wait indefinitely (the default).
	DecisionTimeout time.Duration
}

// Engine drives the Propose-Challenge-Arbitrate cycle for exactly one
// session. It runs as a single cooperative task: phases execute strictly in
// sequence, and the only suspension points are gate waits and port calls.
type Engine struct {
	state           *SessionState
	ports           Ports
	sink            EventSink
	log             *zap.Logger
	decisionTimeout time.Duration

	seq uint64

	// working set for the current round
	proposal  Proposal
	objection Proposal
	merged    Proposal

	// pre-adoption candidate and its display label
	candidate      Proposal
	candidateLabel string
}

// NewEngine creates an engine for the given session. The session must not be
// shared with another engine instance.
func NewEngine(cfg EngineConfig) *Engine {
	sink := cfg.Sink
	if sink == nil {
		sink = NopSink
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		state:           cfg.State,
		ports:           cfg.Ports,
		sink:            sink,
		log:             log.With(zap.String("session", cfg.State.ID)),
		decisionTimeout: cfg.DecisionTimeout,
	}
}

// State exposes the engine's session for snapshot reads and gate lookup.
func (e *Engine) State() *SessionState { return e.state }

// Run executes the deliberation until a terminal phase is reached. Port
// failures degrade to minimal payloads and never abort the session; internal
// defects and context cancellation emit a terminal ERROR event and return
// the underlying error. The event stream always ends in COMPLETE, ESCALATED
// or ERROR.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("session starting",
		zap.String("mission", e.state.Mission),
		zap.Int("max_rounds", e.state.MaxRounds))

	for {
		if err := ctx.Err(); err != nil {
			return e.fail(fmt.Errorf("session cancelled: %w", err))
		}

		phase := e.state.Phase()
		var err error
		switch phase {
		case PhasePropose:
			err = e.stepPropose(ctx)
		case PhaseChallenge:
			err = e.stepChallenge(ctx)
		case PhaseArbitrate:
			err = e.stepArbitrate(ctx)
		case PhaseMergeDraft:
			err = e.stepMergeDraft(ctx)
		case PhaseMergeArbitrate:
			err = e.stepMergeArbitrate(ctx)
		case PhaseValidate:
			err = e.stepValidate(ctx)
		case PhaseRiskReview:
			err = e.stepRiskReview(ctx)
		case PhaseAdopted:
			e.finishAdopted()
			return nil
		case PhaseEscalated:
			e.finishEscalated()
			return nil
		case PhaseRejected:
			e.finishRejected()
			return nil
		default:
			err = fmt.Errorf("unknown phase %q", phase)
		}
		if err != nil {
			return e.fail(err)
		}
	}
}

// fail marks the session failed and closes the stream with a terminal ERROR.
// Reserved for defects and cancellation; port failures never land here.
func (e *Engine) fail(err error) error {
	e.log.Error("session failed", zap.Error(err))
	e.state.markFailed(err.Error())
	e.state.setPhase(PhaseRejected)
	e.emit(Event{Type: EventError, Message: err.Error()})
	return err
}

// emit publishes one event in production order, stamping session id,
// sequence, round and timestamp.
func (e *Engine) emit(ev Event) {
	e.seq++
	ev.SessionID = e.state.ID
	ev.Seq = e.seq
	ev.Timestamp = time.Now().UTC()
	if ev.Round == 0 {
		ev.Round = e.state.Round()
	}
	e.sink.Publish(ev)
}

func (e *Engine) enterPhase(p Phase) {
	e.state.setPhase(p)
	ev := Event{Type: EventPhase, Phase: p}
	if e.seq == 0 {
		// first frame of the stream carries the mission for observers
		// that never see the snapshot
		ev.Data = map[string]any{"mission": e.state.Mission}
	}
	e.emit(ev)
}

// openAndAwait opens a gate, announces it, and suspends until resolution.
// With a configured decision timeout an expired gate resolves to fallback;
// a cancelled context is the only error path.
func (e *Engine) openAndAwait(ctx context.Context, kind GateKind, options []Option, announce EventType, fallback string) (Resolution, error) {
	gate, err := e.state.openGate(kind, options)
	if err != nil {
		return Resolution{}, err
	}
	defer e.state.clearGate()

	e.emit(Event{Type: announce, Data: map[string]any{"options": options}})

	wctx := ctx
	if e.decisionTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, e.decisionTimeout)
		defer cancel()
	}

	res, err := gate.Wait(wctx)
	if err == nil {
		e.log.Info("decision received", zap.String("gate", string(kind)), zap.String("value", res.Value))
		return res, nil
	}
	if ctx.Err() != nil {
		return Resolution{}, ctx.Err()
	}

	// Deadline policy: default to the branch's reject-equivalent. An
	// external resolution racing the deadline wins; ours becomes a no-op.
	e.log.Warn("decision timed out, applying default",
		zap.String("gate", string(kind)), zap.String("default", fallback))
	_ = gate.Resolve(Resolution{Value: fallback, Note: "decision timeout"})
	return gate.Wait(ctx)
}

// degraded builds the minimal payload substituted when a port call fails, so
// the machine always has something to advance with.
func degraded(kind string, err error) Proposal {
	return Proposal{
		Title:     fmt.Sprintf("Unavailable %s", kind),
		Summary:   fmt.Sprintf("The %s collaborator failed to produce content: %v. Treat this entry as a placeholder.", kind, err),
		KeyPoints: []string{"collaborator unavailable"},
		Extra:     map[string]any{"degraded": true},
	}
}

func nowUTC() time.Time { return time.Now().UTC() }

func (e *Engine) portContext() PortContext {
	return PortContext{
		SessionID:  e.state.ID,
		Mission:    e.state.Mission,
		Profile:    e.state.Profile,
		Round:      e.state.Round(),
		Rejections: e.state.rejections(),
	}
}

func (e *Engine) finishAdopted() {
	adopted, _ := e.state.Adopted()
	e.log.Info("session adopted", zap.String("as", e.candidateLabel), zap.String("title", adopted.Title))
	e.emit(Event{
		Type: EventComplete,
		Data: map[string]any{
			"approved": true,
			"adopted":  e.candidateLabel,
			"proposal": adopted.Map(),
		},
	})
}

func (e *Engine) finishEscalated() {
	report := ComposeEscalation(e.state.Snapshot())
	e.state.setEndReason("deadlock: round budget exhausted")
	e.log.Warn("session escalated", zap.Int("rejections", len(report.Rejections)))
	e.emit(Event{
		Type: EventEscalated,
		Data: map[string]any{
			"report":  report.Render(),
			"actions": EscalationActionValues(),
		},
	})
}

func (e *Engine) finishRejected() {
	e.emit(Event{
		Type: EventComplete,
		Data: map[string]any{"approved": false, "adopted": ""},
	})
}
