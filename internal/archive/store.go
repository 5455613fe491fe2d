// Package archive persists council sessions, decisions and events to SQLite
// so deliberations survive a restart and can be audited after the fact.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"quorum/internal/council"
)

// ErrNotArchived is returned when a session id is unknown to the store.
var ErrNotArchived = errors.New("archive: session not found")

// Store wraps the SQLite database holding the deliberation archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the archive at path and bootstraps the
// schema. The parent directory is created as needed.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("archive: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			mission TEXT NOT NULL,
			profile TEXT NOT NULL DEFAULT '',
			phase TEXT NOT NULL,
			round INTEGER NOT NULL,
			max_rounds INTEGER NOT NULL,
			failed INTEGER NOT NULL DEFAULT 0,
			end_reason TEXT NOT NULL DEFAULT '',
			adopted_label TEXT NOT NULL DEFAULT '',
			adopted_yaml TEXT NOT NULL DEFAULT '',
			rejections_yaml TEXT NOT NULL DEFAULT '',
			refinements_yaml TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			ended_at TEXT NOT NULL DEFAULT '',
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			gate TEXT NOT NULL,
			value TEXT NOT NULL,
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS events (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			type TEXT NOT NULL,
			phase TEXT NOT NULL DEFAULT '',
			round INTEGER NOT NULL DEFAULT 0,
			message TEXT NOT NULL DEFAULT '',
			data_json TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL,
			PRIMARY KEY(session_id, seq)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("archive: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeOrZero(input string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, input)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SaveSnapshot upserts the session row from a progress snapshot. Histories
// and the adopted payload are serialized as YAML blobs.
func (s *Store) SaveSnapshot(snap council.Snapshot) error {
	rejections, err := yaml.Marshal(snap.RejectionHistory)
	if err != nil {
		return fmt.Errorf("archive: marshal rejections: %w", err)
	}
	refinements, err := yaml.Marshal(snap.RefinementHistory)
	if err != nil {
		return fmt.Errorf("archive: marshal refinements: %w", err)
	}
	var adopted []byte
	if snap.Adopted != nil {
		if adopted, err = yaml.Marshal(snap.Adopted); err != nil {
			return fmt.Errorf("archive: marshal adopted: %w", err)
		}
	}
	failed := 0
	if snap.Failed {
		failed = 1
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions(session_id,mission,profile,phase,round,max_rounds,failed,end_reason,adopted_label,adopted_yaml,rejections_yaml,refinements_yaml,created_at,ended_at,updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(session_id) DO UPDATE SET
		   phase=excluded.phase,
		   round=excluded.round,
		   failed=excluded.failed,
		   end_reason=excluded.end_reason,
		   adopted_label=excluded.adopted_label,
		   adopted_yaml=excluded.adopted_yaml,
		   rejections_yaml=excluded.rejections_yaml,
		   refinements_yaml=excluded.refinements_yaml,
		   ended_at=excluded.ended_at,
		   updated_at=excluded.updated_at`,
		snap.ID, snap.Mission, snap.Profile, string(snap.Phase), snap.Round, snap.MaxRounds,
		failed, snap.EndReason, snap.AdoptedLabel, string(adopted), string(rejections),
		string(refinements), formatTime(snap.CreatedAt), formatTime(snap.EndedAt), nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("archive: save snapshot: %w", err)
	}
	return nil
}

// RecordDecision appends one resolved gate decision to the audit trail.
func (s *Store) RecordDecision(sessionID, gate, value, note string) error {
	_, err := s.db.Exec(
		`INSERT INTO decisions(session_id,gate,value,note,created_at) VALUES(?,?,?,?,?)`,
		sessionID, gate, value, note, nowRFC3339(),
	)
	if err != nil {
		return fmt.Errorf("archive: record decision: %w", err)
	}
	return nil
}

// RecordEvent appends one stream event. A replayed duplicate (same session
// and sequence) is ignored.
func (s *Store) RecordEvent(ev council.Event) error {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		data = []byte("{}")
	}
	_, err = s.db.Exec(
		`INSERT INTO events(session_id,seq,type,phase,round,message,data_json,created_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(session_id,seq) DO NOTHING`,
		ev.SessionID, ev.Seq, string(ev.Type), string(ev.Phase), ev.Round,
		ev.Message, string(data), formatTime(ev.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("archive: record event: %w", err)
	}
	return nil
}

// ArchivedSession is one persisted session row, histories decoded.
type ArchivedSession struct {
	ID                string
	Mission           string
	Profile           string
	Phase             council.Phase
	Round             int
	MaxRounds         int
	Failed            bool
	EndReason         string
	AdoptedLabel      string
	Adopted           *council.Proposal
	RejectionHistory  []council.RejectionRecord
	RefinementHistory []council.RefinementRecord
	CreatedAt         time.Time
	EndedAt           time.Time
}

// LoadSession fetches one archived session by id.
func (s *Store) LoadSession(sessionID string) (ArchivedSession, error) {
	row := s.db.QueryRow(
		`SELECT session_id,mission,profile,phase,round,max_rounds,failed,end_reason,adopted_label,adopted_yaml,rejections_yaml,refinements_yaml,created_at,ended_at
		 FROM sessions WHERE session_id=?`, sessionID,
	)
	var out ArchivedSession
	var phase, adoptedYAML, rejectionsYAML, refinementsYAML, created, ended string
	var failed int
	err := row.Scan(&out.ID, &out.Mission, &out.Profile, &phase, &out.Round, &out.MaxRounds,
		&failed, &out.EndReason, &out.AdoptedLabel, &adoptedYAML, &rejectionsYAML,
		&refinementsYAML, &created, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return ArchivedSession{}, ErrNotArchived
	}
	if err != nil {
		return ArchivedSession{}, fmt.Errorf("archive: load session: %w", err)
	}
	out.Phase = council.Phase(phase)
	out.Failed = failed == 1
	out.CreatedAt = parseTimeOrZero(created)
	out.EndedAt = parseTimeOrZero(ended)
	if adoptedYAML != "" {
		var p council.Proposal
		if err := yaml.Unmarshal([]byte(adoptedYAML), &p); err == nil {
			out.Adopted = &p
		}
	}
	if rejectionsYAML != "" {
		_ = yaml.Unmarshal([]byte(rejectionsYAML), &out.RejectionHistory)
	}
	if refinementsYAML != "" {
		_ = yaml.Unmarshal([]byte(refinementsYAML), &out.RefinementHistory)
	}
	return out, nil
}

// ListSessions returns archived sessions, most recently updated first.
func (s *Store) ListSessions(limit int) ([]ArchivedSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT session_id FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: list sessions: %w", err)
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]ArchivedSession, 0, len(ids))
	for _, id := range ids {
		sess, err := s.LoadSession(id)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, nil
}

// DecisionRecord is one audited gate resolution.
type DecisionRecord struct {
	SessionID string
	Gate      string
	Value     string
	Note      string
	CreatedAt time.Time
}

// LoadDecisions returns the decision trail of a session in submission order.
func (s *Store) LoadDecisions(sessionID string) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id,gate,value,note,created_at FROM decisions WHERE session_id=? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load decisions: %w", err)
	}
	defer rows.Close()
	out := []DecisionRecord{}
	for rows.Next() {
		var rec DecisionRecord
		var created string
		if err := rows.Scan(&rec.SessionID, &rec.Gate, &rec.Value, &rec.Note, &created); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTimeOrZero(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LoadEvents returns a session's archived events in sequence order.
func (s *Store) LoadEvents(sessionID string) ([]council.Event, error) {
	rows, err := s.db.Query(
		`SELECT seq,type,phase,round,message,data_json,created_at
		 FROM events WHERE session_id=? ORDER BY seq`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: load events: %w", err)
	}
	defer rows.Close()
	out := []council.Event{}
	for rows.Next() {
		ev := council.Event{SessionID: sessionID}
		var typ, phase, dataJSON, created string
		if err := rows.Scan(&ev.Seq, &typ, &phase, &ev.Round, &ev.Message, &dataJSON, &created); err != nil {
			return nil, err
		}
		ev.Type = council.EventType(typ)
		ev.Phase = council.Phase(phase)
		ev.Timestamp = parseTimeOrZero(created)
		if dataJSON != "" && dataJSON != "{}" {
			_ = json.Unmarshal([]byte(dataJSON), &ev.Data)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
