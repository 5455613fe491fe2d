package council

// Proposal is the opaque structured payload exchanged with the agent ports.
// The engine never interprets its semantics; Title, Summary and KeyPoints are
// required only for display, and every other field passes through Extra
// untouched. Missing required fields degrade to empty values, never errors.
type Proposal struct {
	Title     string         `json:"title" yaml:"title"`
	Summary   string         `json:"summary" yaml:"summary"`
	KeyPoints []string       `json:"key_points" yaml:"key_points"`
	Extra     map[string]any `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// ProposalFromMap decodes a loosely-typed payload (typically parsed model
// output) into a Proposal. Unknown keys are preserved in Extra; required
// keys that are absent or mistyped become empty defaults.
func ProposalFromMap(m map[string]any) Proposal {
	var p Proposal
	for k, v := range m {
		switch k {
		case "title":
			if s, ok := v.(string); ok {
				p.Title = s
			}
		case "summary":
			if s, ok := v.(string); ok {
				p.Summary = s
			}
		case "key_points":
			p.KeyPoints = toStringSlice(v)
		default:
			if p.Extra == nil {
				p.Extra = make(map[string]any)
			}
			p.Extra[k] = v
		}
	}
	return p
}

// Map renders the proposal back into its open map form, required fields
// first, passthrough fields after.
func (p Proposal) Map() map[string]any {
	m := make(map[string]any, len(p.Extra)+3)
	for k, v := range p.Extra {
		m[k] = v
	}
	m["title"] = p.Title
	m["summary"] = p.Summary
	m["key_points"] = p.KeyPoints
	return m
}

// Empty reports whether the proposal carries no displayable content at all.
func (p Proposal) Empty() bool {
	return p.Title == "" && p.Summary == "" && len(p.KeyPoints) == 0 && len(p.Extra) == 0
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		out := make([]string, len(vv))
		copy(out, vv)
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// RiskAnalysis is the pre-mortem critique of a candidate decision. Partial
// or empty results are acceptable; the review gate still opens.
type RiskAnalysis struct {
	Perspective      string   `json:"perspective" yaml:"perspective"`
	Summary          string   `json:"summary" yaml:"summary"`
	FailureScenarios []string `json:"failure_scenarios" yaml:"failure_scenarios"`
	BlindSpots       []string `json:"blind_spots" yaml:"blind_spots"`
	Mitigations      []string `json:"mitigations" yaml:"mitigations"`
}

// Map renders the analysis for event payloads.
func (r RiskAnalysis) Map() map[string]any {
	return map[string]any{
		"perspective":       r.Perspective,
		"summary":           r.Summary,
		"failure_scenarios": r.FailureScenarios,
		"blind_spots":       r.BlindSpots,
		"mitigations":       r.Mitigations,
	}
}
