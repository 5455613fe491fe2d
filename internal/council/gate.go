package council

import (
	"context"
	"sync"
)

// GateKind distinguishes the three decision domains a session can suspend on.
type GateKind string

const (
	GateArbitration GateKind = "arbitration"
	GateMerge       GateKind = "merge"
	GatePreMortem   GateKind = "premortem"
)

// Resolution is the value supplied to a pending gate, with an optional
// free-text note (recorded as the reason on rejection).
type Resolution struct {
	Value string `json:"value"`
	Note  string `json:"note,omitempty"`
}

// DecisionGate suspends the engine until exactly one external resolution
// arrives. Lifecycle: pending -> resolved -> discarded. Resolving twice, or
// resolving with a value outside the option domain, is a reported no-op.
type DecisionGate struct {
	kind    GateKind
	options []Option

	mu       sync.Mutex
	resolved bool
	result   chan Resolution
}

func newGate(kind GateKind, options []Option) *DecisionGate {
	return &DecisionGate{
		kind:    kind,
		options: options,
		result:  make(chan Resolution, 1),
	}
}

// Kind returns the gate's decision domain kind.
func (g *DecisionGate) Kind() GateKind { return g.kind }

// Options returns the labeled decision domain.
func (g *DecisionGate) Options() []Option {
	out := make([]Option, len(g.options))
	copy(out, g.options)
	return out
}

// Resolve records the single accepted resolution. A second call returns
// ErrNoPendingDecision; an out-of-domain value returns ErrInvalidOption and
// leaves the gate pending.
func (g *DecisionGate) Resolve(res Resolution) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return ErrNoPendingDecision
	}
	if !g.inDomain(res.Value) {
		return ErrInvalidOption
	}
	g.resolved = true
	g.result <- res
	return nil
}

// Wait blocks cooperatively until the gate is resolved or ctx is done.
func (g *DecisionGate) Wait(ctx context.Context) (Resolution, error) {
	select {
	case res := <-g.result:
		return res, nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}

func (g *DecisionGate) inDomain(value string) bool {
	for _, opt := range g.options {
		if opt.Value == value {
			return true
		}
	}
	return false
}
