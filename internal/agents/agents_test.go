package agents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quorum/internal/council"
)

type stubClient struct {
	replies []string
	errs    []error
	calls   int
	systems []string
	prompts []string
}

func (s *stubClient) Complete(ctx context.Context, prompt string) (string, error) {
	return s.CompleteWithSystem(ctx, "", prompt)
}

func (s *stubClient) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	i := s.calls
	s.calls++
	s.systems = append(s.systems, system)
	s.prompts = append(s.prompts, prompt)
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.replies) {
		return s.replies[i], nil
	}
	return "", errors.New("stub exhausted")
}

func TestExtractJSONFencedBlock(t *testing.T) {
	reply := "Here is my plan:\n```json\n{\"title\": \"Plan A\", \"summary\": \"do it\", \"key_points\": [\"x\"]}\n```\nThanks."
	m := extractJSON(reply)
	require.NotNil(t, m)
	assert.Equal(t, "Plan A", m["title"])
}

func TestExtractJSONBareBraces(t *testing.T) {
	reply := `preamble {"title": "bare"} trailer`
	m := extractJSON(reply)
	require.NotNil(t, m)
	assert.Equal(t, "bare", m["title"])
}

func TestExtractJSONGarbage(t *testing.T) {
	assert.Nil(t, extractJSON("no object here"))
	assert.Nil(t, extractJSON("{not valid json}"))
}

func TestDecodeProposalFallsBackToSummary(t *testing.T) {
	p := decodeProposal("just prose, no JSON at all", "Fallback")
	assert.Equal(t, "Fallback", p.Title)
	assert.Equal(t, "just prose, no JSON at all", p.Summary)
}

func TestProposerDecodesAndPassesRejections(t *testing.T) {
	stub := &stubClient{replies: []string{`{"title":"v2","summary":"refined","key_points":["a","b"],"cost":"low"}`}}
	p := &Proposer{client: stub, log: zap.NewNop()}

	got, err := p.Propose(context.Background(), council.PortContext{
		SessionID: "s1",
		Mission:   "ship the thing",
		Round:     2,
		Rejections: []council.RejectionRecord{
			{Round: 1, Reason: "too expensive", Proposal: council.Proposal{Title: "v1"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, []string{"a", "b"}, got.KeyPoints)
	assert.Equal(t, "low", got.Extra["cost"])
	assert.Contains(t, stub.prompts[0], "too expensive")
	assert.Contains(t, stub.prompts[0], "ship the thing")
}

func TestChallengerIncludesProposalInPrompt(t *testing.T) {
	stub := &stubClient{replies: []string{`{"title":"objection","summary":"no"}`}}
	c := &Challenger{client: stub, log: zap.NewNop()}

	got, err := c.Challenge(context.Background(), council.PortContext{Mission: "m"},
		council.Proposal{Title: "target", Summary: "s", KeyPoints: []string{"kp"}})
	require.NoError(t, err)
	assert.Equal(t, "objection", got.Title)
	assert.Contains(t, stub.prompts[0], "target")
	assert.Contains(t, stub.prompts[0], "kp")
}

func TestSynthesizerForwardsInstruction(t *testing.T) {
	stub := &stubClient{replies: []string{`{"title":"merged"}`}}
	s := &Synthesizer{client: stub, log: zap.NewNop()}

	got, err := s.Synthesize(context.Background(),
		council.Proposal{Title: "A"}, council.Proposal{Title: "B"}, "merge them carefully")
	require.NoError(t, err)
	assert.Equal(t, "merged", got.Title)
	assert.Contains(t, stub.prompts[0], "merge them carefully")
}

func TestRiskAnalyzerDecodesFields(t *testing.T) {
	stub := &stubClient{replies: []string{`{"perspective":"advocate","summary":"risky","failure_scenarios":["f1"],"blind_spots":["b1"],"mitigations":["m1","m2"]}`}}
	r := &RiskAnalyzer{client: stub, log: zap.NewNop()}

	got, err := r.AnalyzeRisk(context.Background(),
		council.Proposal{Title: "cand"}, council.Proposal{Title: "opp"})
	require.NoError(t, err)
	assert.Equal(t, "advocate", got.Perspective)
	assert.Equal(t, []string{"f1"}, got.FailureScenarios)
	assert.Equal(t, []string{"m1", "m2"}, got.Mitigations)
}

func TestRiskAnalyzerToleratesProseReply(t *testing.T) {
	stub := &stubClient{replies: []string{"it could all go wrong"}}
	r := &RiskAnalyzer{client: stub, log: zap.NewNop()}

	got, err := r.AnalyzeRisk(context.Background(), council.Proposal{}, council.Proposal{})
	require.NoError(t, err)
	assert.Equal(t, "pre-mortem", got.Perspective)
	assert.Equal(t, "it could all go wrong", got.Summary)
}

func TestAgentErrorsPropagate(t *testing.T) {
	stub := &stubClient{errs: []error{errors.New("model down")}}
	p := &Proposer{client: stub, log: zap.NewNop()}

	_, err := p.Propose(context.Background(), council.PortContext{Mission: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model down")
}

func TestRetryClientRecovers(t *testing.T) {
	stub := &stubClient{
		errs:    []error{errors.New("blip"), nil},
		replies: []string{"", "fine"},
	}
	client := &retryClient{inner: stub, attempts: 3, backoff: time.Millisecond}

	out, err := client.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
	assert.Equal(t, 2, stub.calls)
}

func TestRetryClientStopsOnContextError(t *testing.T) {
	stub := &stubClient{errs: []error{context.Canceled}}
	client := withRetry(stub, 3)

	_, err := client.Complete(context.Background(), "p")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls)
}

func TestNewWiresAllPorts(t *testing.T) {
	ports := New(Options{Client: &stubClient{}, Retries: 2})
	assert.NotNil(t, ports.Proposer)
	assert.NotNil(t, ports.Challenger)
	assert.NotNil(t, ports.Synthesizer)
	assert.NotNil(t, ports.RiskAnalyzer)
}
