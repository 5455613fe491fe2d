package council

import (
	"context"

	"go.uber.org/zap"
)

// stepPropose asks the proposer for the round's opening position. The
// accumulated rejection history rides along so prior failures inform the
// next attempt.
func (e *Engine) stepPropose(ctx context.Context) error {
	e.enterPhase(PhasePropose)

	proposal, err := e.ports.Proposer.Propose(ctx, e.portContext())
	if err != nil {
		e.log.Warn("proposer failed, degrading", zap.Error(err))
		proposal = degraded("proposal", err)
	}
	e.proposal = proposal
	e.state.setTable(e.proposal, e.objection)

	e.emit(Event{Type: EventProposal, Data: map[string]any{"proposal": proposal.Map()}})
	e.state.setPhase(PhaseChallenge)
	return nil
}

// stepChallenge asks the challenger to object to the fresh proposal. The two
// calls are strictly sequential: the challenge needs the finished proposal.
func (e *Engine) stepChallenge(ctx context.Context) error {
	e.enterPhase(PhaseChallenge)

	objection, err := e.ports.Challenger.Challenge(ctx, e.portContext(), e.proposal)
	if err != nil {
		e.log.Warn("challenger failed, degrading", zap.Error(err))
		objection = degraded("objection", err)
	}
	e.objection = objection
	e.state.setTable(e.proposal, e.objection)

	e.emit(Event{Type: EventObjection, Data: map[string]any{"objection": objection.Map()}})
	e.state.setPhase(PhaseArbitrate)
	return nil
}

// stepArbitrate suspends on the round's main decision gate and branches on
// the arbiter's resolution.
func (e *Engine) stepArbitrate(ctx context.Context) error {
	e.enterPhase(PhaseArbitrate)

	res, err := e.openAndAwait(ctx, GateArbitration, ArbitrationOptions(), EventAwaitingDecision, DecisionReject)
	if err != nil {
		return err
	}

	switch res.Value {
	case DecisionAdoptA:
		e.candidate, e.candidateLabel = e.proposal, "proposal"
		e.state.setPhase(PhaseRiskReview)

	case DecisionAdoptB:
		e.candidate, e.candidateLabel = e.objection, "objection"
		e.state.setPhase(PhaseRiskReview)

	case DecisionExecuteNow:
		// Urgent path: adopt without risk review.
		e.candidate, e.candidateLabel = e.proposal, "proposal"
		if err := e.state.adopt(e.proposal, e.candidateLabel); err != nil {
			return err
		}
		e.state.setPhase(PhaseAdopted)

	case DecisionMerge:
		e.state.setPhase(PhaseMergeDraft)

	case DecisionReject:
		e.recordRejection(res.Note)
		if e.state.incrementRound() {
			e.state.setPhase(PhaseEscalated)
		} else {
			e.state.setPhase(PhasePropose)
		}
	}
	return nil
}

func (e *Engine) recordRejection(reason string) {
	if reason == "" {
		reason = "rejected by arbiter"
	}
	e.state.appendRejection(RejectionRecord{
		Round:     e.state.Round(),
		Proposal:  e.proposal,
		Objection: e.objection,
		Reason:    reason,
		Timestamp: nowUTC(),
	})
}
