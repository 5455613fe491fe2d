// Package status renders a live markdown dashboard of a deliberation.
// Writing is best-effort: a broken dashboard never affects the session.
package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"quorum/internal/council"
)

const maxLogLines = 50

// Writer consumes a session's event stream and keeps status/dashboard.md
// current. It implements council.EventSink.
type Writer struct {
	path string
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*board
	order    []string
}

type board struct {
	mission      string
	phase        council.Phase
	round        int
	proposal     string
	objection    string
	merged       string
	awaiting     string
	outcome      string
	adoptedLabel string
	startedAt    time.Time
	updatedAt    time.Time
	activity     []string
}

// NewWriter writes the dashboard to path (e.g. "status/dashboard.md").
func NewWriter(path string, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		path:     path,
		log:      log,
		sessions: make(map[string]*board),
	}
}

// Publish implements council.EventSink.
func (w *Writer) Publish(ev council.Event) {
	w.mu.Lock()
	b, ok := w.sessions[ev.SessionID]
	if !ok {
		b = &board{startedAt: ev.Timestamp}
		w.sessions[ev.SessionID] = b
		w.order = append(w.order, ev.SessionID)
	}
	w.apply(b, ev)
	content := w.render()
	w.mu.Unlock()

	if err := w.write(content); err != nil {
		w.log.Warn("dashboard write skipped", zap.Error(err))
	}
}

func (w *Writer) apply(b *board, ev council.Event) {
	b.updatedAt = ev.Timestamp
	if ev.Round > 0 {
		b.round = ev.Round
	}
	if ev.Phase != "" {
		b.phase = ev.Phase
	}
	if m, ok := ev.Data["mission"].(string); ok && m != "" {
		b.mission = m
	}

	switch ev.Type {
	case council.EventPhase:
		b.awaiting = ""
		b.logf(ev, "phase %s", ev.Phase)
	case council.EventProposal:
		b.proposal = payloadSummary(ev.Data)
		b.logf(ev, "proposal: %s", b.proposal)
	case council.EventObjection:
		b.objection = payloadSummary(ev.Data)
		b.logf(ev, "objection: %s", b.objection)
	case council.EventMerged:
		b.merged = payloadSummary(ev.Data)
		b.logf(ev, "merged draft: %s", b.merged)
	case council.EventValidation:
		b.logf(ev, "revalidation: %s", ev.Message)
	case council.EventPreMortem:
		b.logf(ev, "pre-mortem delivered")
	case council.EventAwaitingDecision:
		b.awaiting = "arbitration"
		b.logf(ev, "awaiting arbitration")
	case council.EventAwaitingMergeDecision:
		b.awaiting = "merge review"
		b.logf(ev, "awaiting merge review")
	case council.EventAwaitingPreMortemChoice:
		b.awaiting = "pre-mortem review"
		b.logf(ev, "awaiting pre-mortem review")
	case council.EventComplete:
		b.awaiting = ""
		b.outcome = "adopted"
		if label, ok := ev.Data["adopted"].(string); ok {
			b.adoptedLabel = label
		}
		b.logf(ev, "complete (%s)", b.adoptedLabel)
	case council.EventEscalated:
		b.awaiting = ""
		b.outcome = "escalated"
		b.logf(ev, "escalated to human decision-maker")
	case council.EventError:
		b.awaiting = ""
		b.outcome = "error"
		b.logf(ev, "error: %s", ev.Message)
	}
}

func (b *board) logf(ev council.Event, format string, args ...any) {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	line := fmt.Sprintf("- `%s` %s", ts.Format("15:04:05"), fmt.Sprintf(format, args...))
	b.activity = append([]string{line}, b.activity...)
	if len(b.activity) > maxLogLines {
		b.activity = b.activity[:maxLogLines]
	}
}

func payloadSummary(data map[string]any) string {
	payload := data
	for _, key := range []string{"proposal", "objection", "merged", "candidate"} {
		if nested, ok := data[key].(map[string]any); ok {
			payload = nested
			break
		}
	}
	if title, ok := payload["title"].(string); ok && title != "" {
		return truncate(title, 120)
	}
	if summary, ok := payload["summary"].(string); ok && summary != "" {
		return truncate(summary, 120)
	}
	return "(no summary)"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func (w *Writer) render() string {
	var sb strings.Builder
	sb.WriteString("# Council Dashboard\n\n")
	if len(w.order) == 0 {
		sb.WriteString("No sessions yet.\n")
		return sb.String()
	}
	for _, id := range w.order {
		b := w.sessions[id]
		fmt.Fprintf(&sb, "## Session `%s`\n\n", id)
		sb.WriteString("| field | value |\n|-------|-------|\n")
		if b.mission != "" {
			fmt.Fprintf(&sb, "| mission | %s |\n", sanitize(b.mission))
		}
		fmt.Fprintf(&sb, "| phase | **%s** |\n", b.phase)
		fmt.Fprintf(&sb, "| round | %d |\n", b.round)
		if b.awaiting != "" {
			fmt.Fprintf(&sb, "| awaiting | %s |\n", b.awaiting)
		}
		if b.outcome != "" {
			fmt.Fprintf(&sb, "| outcome | **%s** |\n", b.outcome)
		}
		if !b.updatedAt.IsZero() {
			fmt.Fprintf(&sb, "| updated | %s |\n", b.updatedAt.Format(time.RFC3339))
		}
		sb.WriteString("\n### Table\n\n")
		sb.WriteString("| side | summary |\n|------|--------|\n")
		fmt.Fprintf(&sb, "| proposal | %s |\n", sanitize(orDash(b.proposal)))
		fmt.Fprintf(&sb, "| objection | %s |\n", sanitize(orDash(b.objection)))
		fmt.Fprintf(&sb, "| merged | %s |\n", sanitize(orDash(b.merged)))
		sb.WriteString("\n### Activity\n\n")
		for _, line := range b.activity {
			sb.WriteString(sanitize(line))
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// sanitize strips invalid UTF-8 and the pipe/newline characters that would
// break the markdown tables. Model output is not trusted here.
func sanitize(s string) string {
	s = strings.ToValidUTF8(s, "�")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", "\\|")
}

// write replaces the dashboard atomically so readers never see a torn file.
func (w *Writer) write(content string) error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".dashboard-*.md")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), w.path)
}
