// Package agents implements the council's collaborator ports on top of an
// LLM client. Each agent carries a short persona, asks for structured JSON,
// and decodes the reply tolerantly so a malformed response never stalls a
// session.
package agents

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quorum/internal/council"
	"quorum/internal/llm"
)

// Options configures the agent set.
type Options struct {
	Client llm.Client
	Logger *zap.Logger

	// Retries bounds re-attempts per model call. Zero means one attempt.
	Retries int
}

// New builds all four ports over a single client.
func New(opts Options) council.Ports {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	client := opts.Client
	if opts.Retries > 0 {
		client = withRetry(client, opts.Retries)
	}
	return council.Ports{
		Proposer:     &Proposer{client: client, log: opts.Logger.Named("proposer")},
		Challenger:   &Challenger{client: client, log: opts.Logger.Named("challenger")},
		Synthesizer:  &Synthesizer{client: client, log: opts.Logger.Named("synthesizer")},
		RiskAnalyzer: &RiskAnalyzer{client: client, log: opts.Logger.Named("risk")},
	}
}

func describeContext(pc council.PortContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Mission\n%s\n", pc.Mission)
	if pc.Profile != "" {
		fmt.Fprintf(&b, "\n# Profile\n%s\n", pc.Profile)
	}
	fmt.Fprintf(&b, "\n# Round\n%d\n", pc.Round)
	if len(pc.Rejections) > 0 {
		b.WriteString("\n# Prior rejections\n")
		for _, r := range pc.Rejections {
			fmt.Fprintf(&b, "- round %d: %s (proposal: %s)\n", r.Round, r.Reason, r.Proposal.Title)
		}
	}
	return b.String()
}

func describeProposal(label string, p council.Proposal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", label)
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Summary: %s\n", p.Summary)
	if len(p.KeyPoints) > 0 {
		b.WriteString("Key points:\n")
		for _, kp := range p.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", kp)
		}
	}
	return b.String()
}

const jsonInstruction = "Respond with a single JSON object and nothing else. " +
	"Use the keys \"title\", \"summary\" and \"key_points\" (array of strings); " +
	"you may add further keys if useful."
