package council

import "context"

// PortContext carries everything a content-generating collaborator may need
// about the session: the mission, the opaque profile tag, the current round,
// and the accumulated rejection history so prior failures inform the next
// attempt.
type PortContext struct {
	SessionID  string
	Mission    string
	Profile    string
	Round      int
	Rejections []RejectionRecord
}

// ProposerPort produces the round's opening proposal.
type ProposerPort interface {
	Propose(ctx context.Context, pc PortContext) (Proposal, error)
}

// ChallengerPort produces the adversarial objection to a fresh proposal.
type ChallengerPort interface {
	Challenge(ctx context.Context, pc PortContext, proposal Proposal) (Proposal, error)
}

// SynthesizerPort drafts a merged position from both sides.
type SynthesizerPort interface {
	Synthesize(ctx context.Context, proposal, objection Proposal, instruction string) (Proposal, error)
}

// RiskAnalyzerPort produces a pre-mortem critique of a candidate against an
// opposing payload. Partial or empty analyses are tolerated.
type RiskAnalyzerPort interface {
	AnalyzeRisk(ctx context.Context, candidate, opposing Proposal) (RiskAnalysis, error)
}

// Ports bundles the four collaborator capabilities the engine drives.
type Ports struct {
	Proposer     ProposerPort
	Challenger   ChallengerPort
	Synthesizer  SynthesizerPort
	RiskAnalyzer RiskAnalyzerPort
}
