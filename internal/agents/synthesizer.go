package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quorum/internal/council"
	"quorum/internal/llm"
)

const synthesizerPersona = "You are the neutral synthesizer of a decision council. " +
	"Given two opposing positions, draft a single merged plan that keeps the strongest " +
	"elements of each and names the trade-offs explicitly."

// Synthesizer drafts merged positions on the arbiter's instruction.
type Synthesizer struct {
	client llm.Client
	log    *zap.Logger
}

func (s *Synthesizer) Synthesize(ctx context.Context, proposal, objection council.Proposal, instruction string) (council.Proposal, error) {
	prompt := fmt.Sprintf("%s\n%s\n# Instruction\n%s\n%s",
		describeProposal("Position A", proposal),
		describeProposal("Position B", objection),
		instruction, jsonInstruction)

	reply, err := s.client.CompleteWithSystem(ctx, synthesizerPersona, prompt)
	if err != nil {
		s.log.Warn("synthesis call failed", zap.Error(err))
		return council.Proposal{}, fmt.Errorf("synthesize: %w", err)
	}
	merged := decodeProposal(reply, "Merged draft (unstructured)")
	s.log.Debug("merge drafted", zap.String("title", merged.Title))
	return merged, nil
}
