package agents

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quorum/internal/council"
	"quorum/internal/llm"
)

const riskPersona = "You are the pre-mortem analyst of a decision council. " +
	"Assume the candidate decision has already failed a year from now and work backwards: " +
	"name the failure scenarios, the blind spots the opposing position exposes, and concrete mitigations."

const riskInstruction = "Respond with a single JSON object and nothing else. " +
	"Use the keys \"perspective\", \"summary\", \"failure_scenarios\", " +
	"\"blind_spots\" and \"mitigations\" (the last three are arrays of strings)."

// RiskAnalyzer critiques a candidate decision against an opposing payload.
type RiskAnalyzer struct {
	client llm.Client
	log    *zap.Logger
}

func (r *RiskAnalyzer) AnalyzeRisk(ctx context.Context, candidate, opposing council.Proposal) (council.RiskAnalysis, error) {
	prompt := fmt.Sprintf("%s\n%s\n# Instruction\nRun the pre-mortem on the candidate above.\n%s",
		describeProposal("Candidate decision", candidate),
		describeProposal("Opposing position", opposing),
		riskInstruction)

	reply, err := r.client.CompleteWithSystem(ctx, riskPersona, prompt)
	if err != nil {
		r.log.Warn("risk analysis call failed", zap.Error(err))
		return council.RiskAnalysis{}, fmt.Errorf("analyze risk: %w", err)
	}
	analysis := decodeRiskAnalysis(reply, "pre-mortem")
	r.log.Debug("risk analysis produced", zap.Int("scenarios", len(analysis.FailureScenarios)))
	return analysis, nil
}
