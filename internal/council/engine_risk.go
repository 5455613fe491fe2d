package council

import (
	"context"

	"go.uber.org/zap"
)

// stepRiskReview runs the pre-mortem: the candidate is critiqued from both
// sides, the analyses are published, and a final {proceed, reconsider} gate
// guards adoption. This gate is the only safeguard against committing to a
// decision on advocacy strength alone.
func (e *Engine) stepRiskReview(ctx context.Context) error {
	e.enterPhase(PhaseRiskReview)

	advocate := e.analyze(ctx, "advocate", e.candidate, e.objection)
	adversary := e.analyze(ctx, "adversary", e.candidate, e.proposal)

	e.emit(Event{Type: EventPreMortem, Data: map[string]any{
		"candidate": e.candidate.Map(),
		"analyses":  []map[string]any{advocate.Map(), adversary.Map()},
	}})

	res, err := e.openAndAwait(ctx, GatePreMortem, RiskOptions(), EventAwaitingPreMortemChoice, DecisionReconsider)
	if err != nil {
		return err
	}

	if res.Value == DecisionProceed {
		if err := e.state.adopt(e.candidate, e.candidateLabel); err != nil {
			return err
		}
		e.state.setPhase(PhaseAdopted)
		return nil
	}

	// Reconsider: the candidate is discarded and the cycle restarts,
	// subject to the same round budget as every other loop edge.
	e.log.Info("candidate reconsidered", zap.String("label", e.candidateLabel))
	e.candidate, e.candidateLabel = Proposal{}, ""
	if e.state.incrementRound() {
		e.state.setPhase(PhaseEscalated)
	} else {
		e.state.setPhase(PhasePropose)
	}
	return nil
}

// analyze wraps one risk-analyzer call, tolerating failure with an empty
// tagged analysis.
func (e *Engine) analyze(ctx context.Context, perspective string, candidate, opposing Proposal) RiskAnalysis {
	out, err := e.ports.RiskAnalyzer.AnalyzeRisk(ctx, candidate, opposing)
	if err != nil {
		e.log.Warn("risk analysis failed", zap.String("perspective", perspective), zap.Error(err))
		return RiskAnalysis{Perspective: perspective}
	}
	if out.Perspective == "" {
		out.Perspective = perspective
	}
	return out
}
