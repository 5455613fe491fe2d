// Package council implements the Propose-Challenge-Arbitrate deliberation
// engine: a finite-state cycle in which two adversarial agents produce a
// proposal and an objection, a human arbiter resolves each round through a
// single-resolution decision gate, and a bounded escalation path takes over
// when no consensus is reached within the round budget.
package council

// Phase is a state of the deliberation cycle.
type Phase string

const (
	PhasePropose        Phase = "PROPOSE"
	PhaseChallenge      Phase = "CHALLENGE"
	PhaseArbitrate      Phase = "ARBITRATE"
	PhaseMergeDraft     Phase = "MERGE_DRAFT"
	PhaseMergeArbitrate Phase = "MERGE_ARBITRATE"
	PhaseValidate       Phase = "VALIDATE"
	PhaseRiskReview     Phase = "RISK_REVIEW"
	PhaseAdopted        Phase = "ADOPTED"
	PhaseRejected       Phase = "REJECTED"
	PhaseEscalated      Phase = "ESCALATED"
)

// Terminal reports whether the phase is a sink: no further events are
// emitted and no further gates open once a session reaches it.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseAdopted, PhaseRejected, PhaseEscalated:
		return true
	}
	return false
}

// Option is one labeled entry in a gate's decision domain.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Arbitration decision values.
const (
	DecisionAdoptA     = "adopt_a"
	DecisionAdoptB     = "adopt_b"
	DecisionMerge      = "merge"
	DecisionReject     = "reject"
	DecisionExecuteNow = "execute_now"
)

// Merge-arbitration decision values.
const (
	DecisionMergeAdopt  = "adopt"
	DecisionMergeReject = "reject"
)

// Pre-mortem decision values.
const (
	DecisionProceed    = "proceed"
	DecisionReconsider = "reconsider"
)

// ArbitrationOptions is the decision domain opened when a round reaches
// ARBITRATE.
func ArbitrationOptions() []Option {
	return []Option{
		{Value: DecisionAdoptA, Label: "Adopt the proposal"},
		{Value: DecisionAdoptB, Label: "Adopt the objection's counter-position"},
		{Value: DecisionMerge, Label: "Draft a merged position"},
		{Value: DecisionReject, Label: "Reject both and reiterate"},
		{Value: DecisionExecuteNow, Label: "Adopt the proposal immediately, skipping risk review"},
	}
}

// MergeOptions is the decision domain for a synthesized draft.
func MergeOptions() []Option {
	return []Option{
		{Value: DecisionMergeAdopt, Label: "Adopt the merged draft"},
		{Value: DecisionMergeReject, Label: "Reject the draft and revalidate"},
	}
}

// RiskOptions is the decision domain of the pre-adoption risk review.
func RiskOptions() []Option {
	return []Option{
		{Value: DecisionProceed, Label: "Proceed with adoption"},
		{Value: DecisionReconsider, Label: "Reconsider from a fresh proposal"},
	}
}
