package council

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestProposalFromMapTolerantDecode(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want Proposal
	}{
		{
			name: "full payload with passthrough",
			in: map[string]any{
				"title":      "Use k3s",
				"summary":    "Lightweight cluster",
				"key_points": []any{"small footprint", "fast setup"},
				"cost":       42.0,
			},
			want: Proposal{
				Title:     "Use k3s",
				Summary:   "Lightweight cluster",
				KeyPoints: []string{"small footprint", "fast setup"},
				Extra:     map[string]any{"cost": 42.0},
			},
		},
		{
			name: "missing required fields default empty",
			in:   map[string]any{"notes": "nothing else"},
			want: Proposal{Extra: map[string]any{"notes": "nothing else"}},
		},
		{
			name: "mistyped fields are dropped, not fatal",
			in: map[string]any{
				"title":      7,
				"summary":    true,
				"key_points": "not a list",
			},
			want: Proposal{},
		},
		{
			name: "mixed key_points keep only strings",
			in:   map[string]any{"key_points": []any{"a", 1, "b"}},
			want: Proposal{KeyPoints: []string{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProposalFromMap(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ProposalFromMap() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProposalMapRoundTrip(t *testing.T) {
	p := Proposal{
		Title:     "t",
		Summary:   "s",
		KeyPoints: []string{"k"},
		Extra:     map[string]any{"reasoning": "because"},
	}
	m := p.Map()
	if m["title"] != "t" || m["summary"] != "s" {
		t.Fatalf("Map() lost required fields: %v", m)
	}
	if m["reasoning"] != "because" {
		t.Fatalf("Map() lost passthrough field: %v", m)
	}

	back := ProposalFromMap(m)
	if diff := cmp.Diff(p, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestProposalEmpty(t *testing.T) {
	if !(Proposal{}).Empty() {
		t.Error("zero proposal should be empty")
	}
	if (Proposal{Title: "x"}).Empty() {
		t.Error("titled proposal should not be empty")
	}
}
