package agents

import (
	"encoding/json"
	"regexp"
	"strings"

	"quorum/internal/council"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSON pulls a JSON object out of a model reply. It prefers a fenced
// code block, then falls back to the outermost brace pair. Returns nil when
// no object parses.
func extractJSON(reply string) map[string]any {
	text := strings.TrimSpace(reply)
	if m := fencedJSON.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return nil
		}
		text = text[start : end+1]
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	return out
}

// decodeProposal turns a model reply into a Proposal. Replies that carry no
// parseable JSON are folded into the summary so the session keeps moving.
func decodeProposal(reply, fallbackTitle string) council.Proposal {
	if m := extractJSON(reply); m != nil {
		return council.ProposalFromMap(m)
	}
	return council.Proposal{
		Title:   fallbackTitle,
		Summary: strings.TrimSpace(reply),
	}
}

// decodeRiskAnalysis turns a model reply into a RiskAnalysis. Unparseable
// replies become a summary-only analysis.
func decodeRiskAnalysis(reply, perspective string) council.RiskAnalysis {
	m := extractJSON(reply)
	if m == nil {
		return council.RiskAnalysis{
			Perspective: perspective,
			Summary:     strings.TrimSpace(reply),
		}
	}
	ra := council.RiskAnalysis{Perspective: perspective}
	if s, ok := m["perspective"].(string); ok && s != "" {
		ra.Perspective = s
	}
	if s, ok := m["summary"].(string); ok {
		ra.Summary = s
	}
	ra.FailureScenarios = stringSlice(m["failure_scenarios"])
	ra.BlindSpots = stringSlice(m["blind_spots"])
	ra.Mitigations = stringSlice(m["mitigations"])
	return ra
}

func stringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
