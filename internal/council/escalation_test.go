package council

import (
	"strings"
	"testing"
	"time"
)

func TestComposeEscalation(t *testing.T) {
	snap := Snapshot{
		ID:        "council-x1",
		Mission:   "pick a queueing strategy",
		Round:     4,
		MaxRounds: 3,
		RejectionHistory: []RejectionRecord{
			{Round: 1, Proposal: Proposal{Title: "Kafka"}, Objection: Proposal{Title: "Too heavy"}, Reason: "operational cost", Timestamp: time.Now()},
			{Round: 2, Proposal: Proposal{Title: "NATS", Summary: "lighter"}, Objection: Proposal{Title: "Less durable"}, Reason: "durability", Timestamp: time.Now()},
		},
		RefinementHistory: []RefinementRecord{
			{Round: 3, Refined: Proposal{Title: "NATS JetStream"}, Review: RiskAnalysis{Summary: "durability addressed"}},
		},
	}

	report := ComposeEscalation(snap)

	if report.RoundsTaken != 3 {
		t.Errorf("RoundsTaken = %d, want 3", report.RoundsTaken)
	}
	if len(report.Actions) != 5 {
		t.Errorf("actions = %d, want the closed 5-entry menu", len(report.Actions))
	}

	text := report.Render()
	for _, want := range []string{
		"council-x1",
		"pick a queueing strategy",
		"Round 1", "Round 2",
		"Kafka", "NATS",
		"operational cost",
		"durability addressed",
		"`force-A`", "`force-B`", "`manual-merge`", "`split`", "`abort`",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestEscalationReportEmptyHistories(t *testing.T) {
	report := ComposeEscalation(Snapshot{ID: "s", Mission: "m", Round: 1, MaxRounds: 3})
	text := report.Render()
	if strings.Contains(text, "## Rejected rounds") {
		t.Error("empty rejection history should not render a section")
	}
	if !strings.Contains(text, "## Available actions") {
		t.Error("action menu must always render")
	}
}

func TestOneLineTruncates(t *testing.T) {
	long := strings.Repeat("a", 300)
	got := oneLine(Proposal{Summary: long})
	if len([]rune(got)) > 170 {
		t.Errorf("oneLine did not truncate: %d runes", len([]rune(got)))
	}
	if oneLine(Proposal{}) != "(empty)" {
		t.Errorf("empty proposal renders %q", oneLine(Proposal{}))
	}
}
