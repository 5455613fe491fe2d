package council

import (
	"fmt"
	"strings"
)

// Escalation action values. Escalation is resolved out-of-band through
// Registry.ResolveEscalation, not through a DecisionGate: it represents
// protocol failure, not a protocol-internal choice.
const (
	ActionForceA      = "force-A"
	ActionForceB      = "force-B"
	ActionManualMerge = "manual-merge"
	ActionSplit       = "split"
	ActionAbort       = "abort"
)

// EscalationActions is the closed remediation menu attached to a deadlock
// report.
func EscalationActions() []Option {
	return []Option{
		{Value: ActionForceA, Label: "Force-adopt the last proposal"},
		{Value: ActionForceB, Label: "Force-adopt the last objection"},
		{Value: ActionManualMerge, Label: "Adopt a manually merged payload"},
		{Value: ActionSplit, Label: "Split the mission and restart smaller"},
		{Value: ActionAbort, Label: "Abort the deliberation"},
	}
}

// EscalationActionValues returns just the action values, for event payloads.
func EscalationActionValues() []string {
	actions := EscalationActions()
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Value
	}
	return out
}

// EscalationReport is a derived, read-only view over a deadlocked session's
// histories. It has no lifecycle of its own.
type EscalationReport struct {
	SessionID   string             `json:"session_id"`
	Mission     string             `json:"mission"`
	RoundsTaken int                `json:"rounds_taken"`
	MaxRounds   int                `json:"max_rounds"`
	Rejections  []RejectionRecord  `json:"rejections"`
	Refinements []RefinementRecord `json:"refinements"`
	Actions     []Option           `json:"actions"`
}

// ComposeEscalation renders a session snapshot into a deadlock report plus
// the closed remediation menu.
func ComposeEscalation(snap Snapshot) EscalationReport {
	return EscalationReport{
		SessionID:   snap.ID,
		Mission:     snap.Mission,
		RoundsTaken: snap.Round - 1,
		MaxRounds:   snap.MaxRounds,
		Rejections:  snap.RejectionHistory,
		Refinements: snap.RefinementHistory,
		Actions:     EscalationActions(),
	}
}

// Render produces the human-readable deadlock report.
func (r EscalationReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Deadlock report: %s\n\n", r.SessionID)
	fmt.Fprintf(&b, "Mission: %s\n", r.Mission)
	fmt.Fprintf(&b, "Round budget exhausted after %d of %d rounds without adoption.\n\n", r.RoundsTaken, r.MaxRounds)

	if len(r.Rejections) > 0 {
		b.WriteString("## Rejected rounds\n\n")
		for _, rec := range r.Rejections {
			fmt.Fprintf(&b, "### Round %d\n", rec.Round)
			fmt.Fprintf(&b, "- Proposal: %s\n", oneLine(rec.Proposal))
			fmt.Fprintf(&b, "- Objection: %s\n", oneLine(rec.Objection))
			fmt.Fprintf(&b, "- Reason: %s\n\n", rec.Reason)
		}
	}
	if len(r.Refinements) > 0 {
		b.WriteString("## Refinements\n\n")
		for _, rec := range r.Refinements {
			fmt.Fprintf(&b, "### Round %d\n", rec.Round)
			fmt.Fprintf(&b, "- Refined: %s\n", oneLine(rec.Refined))
			if rec.Review.Summary != "" {
				fmt.Fprintf(&b, "- Review: %s\n", rec.Review.Summary)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Available actions\n\n")
	for _, a := range r.Actions {
		fmt.Fprintf(&b, "- `%s`: %s\n", a.Value, a.Label)
	}
	return b.String()
}

func oneLine(p Proposal) string {
	switch {
	case p.Title != "" && p.Summary != "":
		return p.Title + ": " + truncate(p.Summary, 160)
	case p.Title != "":
		return p.Title
	case p.Summary != "":
		return truncate(p.Summary, 160)
	}
	return "(empty)"
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
