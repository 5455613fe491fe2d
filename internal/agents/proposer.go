package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quorum/internal/council"
	"quorum/internal/llm"
)

const proposerPersona = "You are the lead strategist of a decision council. " +
	"You open each round with a concrete, well-argued proposal for the mission. " +
	"Favor ambition backed by evidence; learn from prior rejections instead of repeating them."

// Proposer drives the opening proposal of each round.
type Proposer struct {
	client llm.Client
	log    *zap.Logger
}

func (p *Proposer) Propose(ctx context.Context, pc council.PortContext) (council.Proposal, error) {
	prompt := fmt.Sprintf("%s\n# Instruction\nDraft this round's proposal for the mission above.\n%s",
		describeContext(pc), jsonInstruction)

	reply, err := p.client.CompleteWithSystem(ctx, proposerPersona, prompt)
	if err != nil {
		p.log.Warn("proposal call failed", zap.String("session", pc.SessionID), zap.Error(err))
		return council.Proposal{}, fmt.Errorf("propose: %w", err)
	}
	proposal := decodeProposal(reply, "Proposal (unstructured)")
	p.log.Debug("proposal produced",
		zap.String("session", pc.SessionID),
		zap.Int("round", pc.Round),
		zap.String("title", proposal.Title))
	return proposal, nil
}
