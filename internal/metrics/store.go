// Package metrics keeps a local history of review decisions and plan audits
// in SQLite.
package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeLayout is fixed width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Kind classifies a recorded event.
type Kind int

const (
	KindDecision Kind = iota // router decision
	KindReview               // human checkpoint outcome
	KindAudit                // post-implementation plan audit
)

func (k Kind) String() string {
	switch k {
	case KindDecision:
		return "decision"
	case KindReview:
		return "review"
	case KindAudit:
		return "audit"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{KindDecision, KindReview, KindAudit} {
		if k.String() == s {
			return k, nil
		}
	}
	return KindDecision, fmt.Errorf("unknown event kind %q", s)
}

// Event is one row of review history.
type Event struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"task_id"`
	Kind            Kind      `json:"kind"`
	Score           int       `json:"score,omitempty"`
	Mode            string    `json:"mode,omitempty"`
	Action          string    `json:"action,omitempty"`
	Severity        string    `json:"severity,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Stats aggregates the history.
type Stats struct {
	TotalEvents      int            `json:"total_events"`
	Decisions        int            `json:"decisions"`
	AverageScore     float64        `json:"average_score"`
	ByMode           map[string]int `json:"by_mode"`
	ByAction         map[string]int `json:"by_action"`
	AuditsBySeverity map[string]int `json:"audits_by_severity"`
}

// Recorder receives events. Review flows depend on this rather than Store.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Store is the SQLite-backed history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("metrics: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("metrics: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("metrics: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("metrics: migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id               TEXT PRIMARY KEY,
			task_id          TEXT    NOT NULL,
			kind             TEXT    NOT NULL,
			score            INTEGER NOT NULL DEFAULT 0,
			mode             TEXT    NOT NULL DEFAULT '',
			action           TEXT    NOT NULL DEFAULT '',
			severity         TEXT    NOT NULL DEFAULT '',
			duration_seconds REAL    NOT NULL DEFAULT 0,
			created_at       TEXT    NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_task    ON events(task_id);
		CREATE INDEX IF NOT EXISTS idx_events_kind    ON events(kind);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores e, assigning an ID and timestamp when absent.
func (s *Store) Record(ctx context.Context, e Event) error {
	if e.TaskID == "" {
		return errors.New("metrics: event has no task id")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, task_id, kind, score, mode, action, severity, duration_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.Kind.String(), e.Score, e.Mode, e.Action, e.Severity,
		e.DurationSeconds, e.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("metrics: record %s event for %s: %w", e.Kind, e.TaskID, err)
	}
	return nil
}

// Recent returns up to limit events, newest first. An empty taskID matches
// every task.
func (s *Store) Recent(ctx context.Context, taskID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, task_id, kind, score, mode, action, severity, duration_seconds, created_at
		FROM events`
	args := []any{}
	if taskID != "" {
		query += " WHERE task_id = ?"
		args = append(args, taskID)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metrics: query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			e       Event
			kind    string
			created string
		)
		if err := rows.Scan(&e.ID, &e.TaskID, &kind, &e.Score, &e.Mode, &e.Action, &e.Severity, &e.DurationSeconds, &created); err != nil {
			return nil, fmt.Errorf("metrics: scan event: %w", err)
		}
		if e.Kind, err = ParseKind(kind); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("metrics: event %s timestamp: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats aggregates all recorded events.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		ByMode:           map[string]int{},
		ByAction:         map[string]int{},
		AuditsBySeverity: map[string]int{},
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&stats.TotalEvents); err != nil {
		return nil, fmt.Errorf("metrics: count events: %w", err)
	}

	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(score) FROM events WHERE kind = ?", KindDecision.String()).
		Scan(&stats.Decisions, &avg)
	if err != nil {
		return nil, fmt.Errorf("metrics: average score: %w", err)
	}
	stats.AverageScore = avg.Float64

	groups := []struct {
		query string
		arg   string
		into  map[string]int
	}{
		{"SELECT mode, COUNT(*) FROM events WHERE kind = ? AND mode != '' GROUP BY mode", KindDecision.String(), stats.ByMode},
		{"SELECT action, COUNT(*) FROM events WHERE kind = ? AND action != '' GROUP BY action", KindReview.String(), stats.ByAction},
		{"SELECT severity, COUNT(*) FROM events WHERE kind = ? AND severity != '' GROUP BY severity", KindAudit.String(), stats.AuditsBySeverity},
	}
	for _, g := range groups {
		if err := s.countInto(ctx, g.query, g.arg, g.into); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *Store) countInto(ctx context.Context, query, arg string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("metrics: group events: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var (
			key string
			n   int
		)
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("metrics: scan group: %w", err)
		}
		into[key] = n
	}
	return rows.Err()
}
