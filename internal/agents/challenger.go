package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quorum/internal/council"
	"quorum/internal/llm"
)

const challengerPersona = "You are the devil's advocate of a decision council. " +
	"Attack the proposal's weakest assumptions on cost, realism and operational load, " +
	"then counter with a leaner alternative. Be adversarial but constructive."

// Challenger produces the objection and counter-position for a proposal.
type Challenger struct {
	client llm.Client
	log    *zap.Logger
}

func (c *Challenger) Challenge(ctx context.Context, pc council.PortContext, proposal council.Proposal) (council.Proposal, error) {
	prompt := fmt.Sprintf("%s\n%s\n# Instruction\nObject to the proposal above and present your counter-position.\n%s",
		describeContext(pc), describeProposal("Proposal under challenge", proposal), jsonInstruction)

	reply, err := c.client.CompleteWithSystem(ctx, challengerPersona, prompt)
	if err != nil {
		c.log.Warn("challenge call failed", zap.String("session", pc.SessionID), zap.Error(err))
		return council.Proposal{}, fmt.Errorf("challenge: %w", err)
	}
	objection := decodeProposal(reply, "Objection (unstructured)")
	c.log.Debug("objection produced",
		zap.String("session", pc.SessionID),
		zap.Int("round", pc.Round),
		zap.String("title", objection.Title))
	return objection, nil
}
