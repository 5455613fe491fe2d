package council

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// stepMergeDraft asks the synthesizer for a merged position and opens the
// merge-arbitration gate over it.
func (e *Engine) stepMergeDraft(ctx context.Context) error {
	e.enterPhase(PhaseMergeDraft)

	merged, err := e.ports.Synthesizer.Synthesize(ctx, e.proposal, e.objection, mergeInstruction)
	if err != nil {
		e.log.Warn("synthesizer failed, falling back to naive merge", zap.Error(err))
		merged = naiveMerge(e.proposal, e.objection)
	}
	e.merged = merged

	e.emit(Event{Type: EventMerged, Data: map[string]any{"merged": merged.Map()}})
	e.state.setPhase(PhaseMergeArbitrate)
	return nil
}

// stepMergeArbitrate suspends on the {adopt, reject} gate for the draft.
func (e *Engine) stepMergeArbitrate(ctx context.Context) error {
	e.enterPhase(PhaseMergeArbitrate)

	res, err := e.openAndAwait(ctx, GateMerge, MergeOptions(), EventAwaitingMergeDecision, DecisionMergeReject)
	if err != nil {
		return err
	}

	if res.Value == DecisionMergeAdopt {
		e.candidate, e.candidateLabel = e.merged, "merged"
		e.state.setPhase(PhaseRiskReview)
		return nil
	}
	e.state.setPhase(PhaseValidate)
	return nil
}

// stepValidate turns a rejected draft into a revised proposal: the risk
// analyzer critiques the draft as a self-check, the critique is folded back
// into a refined payload, and the cycle re-enters CHALLENGE (not PROPOSE,
// since a revised proposal already exists). The standing objection is
// discarded along the way.
func (e *Engine) stepValidate(ctx context.Context) error {
	e.enterPhase(PhaseValidate)

	review, err := e.ports.RiskAnalyzer.AnalyzeRisk(ctx, e.merged, e.objection)
	if err != nil {
		e.log.Warn("risk analyzer failed during validation", zap.Error(err))
		review = RiskAnalysis{Summary: fmt.Sprintf("review unavailable: %v", err)}
	}
	refined := refineFromReview(e.merged, review)

	e.state.appendRefinement(RefinementRecord{
		Round:     e.state.Round(),
		Refined:   refined,
		Review:    review,
		Timestamp: nowUTC(),
	})
	e.emit(Event{Type: EventValidation, Data: map[string]any{
		"refined": refined.Map(),
		"review":  review.Map(),
	}})

	e.proposal = refined
	e.objection = Proposal{}
	e.state.setTable(e.proposal, e.objection)

	if e.state.incrementRound() {
		e.state.setPhase(PhaseEscalated)
	} else {
		e.state.setPhase(PhaseChallenge)
	}
	return nil
}

// naiveMerge is the degraded stand-in when synthesis fails: both key point
// lists side by side under a neutral summary.
func naiveMerge(proposal, objection Proposal) Proposal {
	points := make([]string, 0, len(proposal.KeyPoints)+len(objection.KeyPoints))
	points = append(points, proposal.KeyPoints...)
	points = append(points, objection.KeyPoints...)
	return Proposal{
		Title:     "Merged position (fallback)",
		Summary:   "Synthesis was unavailable; this draft lists both positions' key points unreconciled.",
		KeyPoints: points,
		Extra:     map[string]any{"degraded": true},
	}
}

// refineFromReview folds a self-critique back into the draft it reviewed.
func refineFromReview(draft Proposal, review RiskAnalysis) Proposal {
	refined := Proposal{
		Title:     draft.Title,
		Summary:   draft.Summary,
		KeyPoints: draft.KeyPoints,
		Extra:     map[string]any{"revised": true},
	}
	if refined.Title == "" {
		refined.Title = "Revised draft"
	}
	if review.Summary != "" {
		refined.Summary = review.Summary
	}
	if len(review.Mitigations) > 0 {
		refined.KeyPoints = review.Mitigations
	}
	for k, v := range draft.Extra {
		refined.Extra[k] = v
	}
	return refined
}
