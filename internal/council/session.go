package council

import (
	"fmt"
	"sync"
	"time"
)

// RejectionRecord captures one rejected round: the proposal and objection on
// the table when the arbiter rejected, and the stated reason.
type RejectionRecord struct {
	Round     int       `json:"round" yaml:"round"`
	Proposal  Proposal  `json:"proposal" yaml:"proposal"`
	Objection Proposal  `json:"objection" yaml:"objection"`
	Reason    string    `json:"reason" yaml:"reason"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RefinementRecord captures one merge-reject revalidation: the revised
// proposal produced by self-critique and the review that produced it.
type RefinementRecord struct {
	Round     int          `json:"round" yaml:"round"`
	Refined   Proposal     `json:"refined" yaml:"refined"`
	Review    RiskAnalysis `json:"review" yaml:"review"`
	Timestamp time.Time    `json:"timestamp" yaml:"timestamp"`
}

// SessionState is the in-memory record of one deliberation. It is owned and
// mutated exclusively by the engine running the session; external readers go
// through Snapshot or the event stream. The mutex only reconciles the
// engine's writes with concurrent snapshot reads and gate lookups.
type SessionState struct {
	ID        string
	Mission   string
	Profile   string // opaque tag forwarded to ports, never interpreted
	MaxRounds int
	CreatedAt time.Time

	mu                sync.Mutex
	round             int
	phase             Phase
	pendingGate       *DecisionGate
	adopted           *Proposal
	adoptedLabel      string
	endReason         string
	failed            bool
	endedAt           time.Time
	rejectionHistory  []RejectionRecord
	refinementHistory []RefinementRecord

	// last payloads on the table, kept for escalation resolution
	lastProposal  Proposal
	lastObjection Proposal
}

// NewSessionState creates a session positioned at round 1, PROPOSE.
func NewSessionState(id, mission, profile string, maxRounds int) *SessionState {
	if maxRounds < 1 {
		maxRounds = 1
	}
	return &SessionState{
		ID:        id,
		Mission:   mission,
		Profile:   profile,
		MaxRounds: maxRounds,
		CreatedAt: time.Now().UTC(),
		round:     1,
		phase:     PhasePropose,
	}
}

// Round returns the current round counter.
func (s *SessionState) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// Phase returns the current phase.
func (s *SessionState) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Adopted returns the adopted proposal, if the session terminated ADOPTED.
func (s *SessionState) Adopted() (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adopted == nil {
		return Proposal{}, false
	}
	return *s.adopted, true
}

// PendingGate returns the open gate, or nil when the session is not
// suspended on a decision.
func (s *SessionState) PendingGate() *DecisionGate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingGate
}

func (s *SessionState) setPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
	if p.Terminal() && s.endedAt.IsZero() {
		s.endedAt = time.Now().UTC()
	}
}

// incrementRound advances the round counter and reports whether the budget
// is now exhausted. The check runs after the increment so every branch uses
// the same convention.
func (s *SessionState) incrementRound() (exceeded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round++
	return s.round > s.MaxRounds
}

// openGate installs a new pending gate. At most one gate may be pending per
// session; a second open while one is pending is an internal defect.
func (s *SessionState) openGate(kind GateKind, options []Option) (*DecisionGate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingGate != nil {
		return nil, fmt.Errorf("open %s gate: %w", kind, ErrGateOpen)
	}
	g := newGate(kind, options)
	s.pendingGate = g
	return g, nil
}

// clearGate discards the pending gate once its resolution was consumed.
func (s *SessionState) clearGate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingGate = nil
}

// adopt fixes the adopted proposal. It may happen once; afterwards the value
// is immutable and a second call is an internal defect.
func (s *SessionState) adopt(p Proposal, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adopted != nil {
		return ErrAlreadyAdopted
	}
	cp := p
	s.adopted = &cp
	s.adoptedLabel = label
	return nil
}

func (s *SessionState) appendRejection(rec RejectionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectionHistory = append(s.rejectionHistory, rec)
}

func (s *SessionState) appendRefinement(rec RefinementRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refinementHistory = append(s.refinementHistory, rec)
}

func (s *SessionState) setEndReason(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endReason = reason
}

func (s *SessionState) markFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = true
	s.endReason = reason
}

func (s *SessionState) setTable(proposal, objection Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProposal = proposal
	s.lastObjection = objection
}

func (s *SessionState) table() (Proposal, Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastProposal, s.lastObjection
}

// rejections returns a copy of the rejection history for port context.
func (s *SessionState) rejections() []RejectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RejectionRecord, len(s.rejectionHistory))
	copy(out, s.rejectionHistory)
	return out
}

// Snapshot is a read-only copy of a session's progress, safe to hand to
// observers while the engine keeps running.
type Snapshot struct {
	ID                string             `json:"session_id" yaml:"session_id"`
	Mission           string             `json:"mission" yaml:"mission"`
	Profile           string             `json:"profile,omitempty" yaml:"profile,omitempty"`
	Round             int                `json:"round" yaml:"round"`
	MaxRounds         int                `json:"max_rounds" yaml:"max_rounds"`
	Phase             Phase              `json:"phase" yaml:"phase"`
	AwaitingDecision  bool               `json:"awaiting_decision" yaml:"awaiting_decision"`
	GateKind          GateKind           `json:"gate_kind,omitempty" yaml:"gate_kind,omitempty"`
	GateOptions       []Option           `json:"gate_options,omitempty" yaml:"gate_options,omitempty"`
	Adopted           *Proposal          `json:"adopted,omitempty" yaml:"adopted,omitempty"`
	AdoptedLabel      string             `json:"adopted_label,omitempty" yaml:"adopted_label,omitempty"`
	EndReason         string             `json:"end_reason,omitempty" yaml:"end_reason,omitempty"`
	Failed            bool               `json:"failed,omitempty" yaml:"failed,omitempty"`
	CreatedAt         time.Time          `json:"created_at" yaml:"created_at"`
	EndedAt           time.Time          `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
	RejectionHistory  []RejectionRecord  `json:"rejection_history" yaml:"rejection_history"`
	RefinementHistory []RefinementRecord `json:"refinement_history" yaml:"refinement_history"`
}

// Snapshot copies the current state for external readers.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:        s.ID,
		Mission:   s.Mission,
		Profile:   s.Profile,
		Round:     s.round,
		MaxRounds: s.MaxRounds,
		Phase:     s.phase,
		EndReason: s.endReason,
		Failed:    s.failed,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.endedAt,
	}
	if s.pendingGate != nil {
		snap.AwaitingDecision = true
		snap.GateKind = s.pendingGate.Kind()
		snap.GateOptions = s.pendingGate.Options()
	}
	if s.adopted != nil {
		cp := *s.adopted
		snap.Adopted = &cp
		snap.AdoptedLabel = s.adoptedLabel
	}
	snap.RejectionHistory = make([]RejectionRecord, len(s.rejectionHistory))
	copy(snap.RejectionHistory, s.rejectionHistory)
	snap.RefinementHistory = make([]RefinementRecord, len(s.refinementHistory))
	copy(snap.RefinementHistory, s.refinementHistory)
	return snap
}
