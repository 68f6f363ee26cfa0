// Package history keeps a persistent log of jams and their clearance in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/cortocircuito/conveyor-monitor/internal/logic"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// timeLayout is fixed width so occurred_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `CREATE TABLE IF NOT EXISTS jam_events (
    event_id TEXT PRIMARY KEY,
    occurred_at TEXT NOT NULL,
    event_type TEXT NOT NULL,
    mode TEXT NOT NULL,
    reason TEXT NOT NULL,
    elapsed_ms INTEGER NOT NULL,
    expected_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS jam_events_occurred_at ON jam_events (occurred_at);`

// Entry is one stored event.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"`
	Mode      string        `json:"mode"`
	Reason    string        `json:"reason,omitempty"`
	Elapsed   time.Duration `json:"-"`
	Expected  time.Duration `json:"-"`
	ElapsedS  float64       `json:"elapsed_s"`
	ExpectedS float64       `json:"expected_s"`
}

// Recorder persists controller events.
type Recorder interface {
	Record(ctx context.Context, event logic.Event) (id string, err error)
}

// Lister returns recent entries, newest first.
type Lister interface {
	List(ctx context.Context, limit int) ([]Entry, error)
}

// Store is the SQLite-backed history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history: path is required")
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, "create history directory")
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}
	// One connection: writes are rare and an in-memory database lives per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history schema")
	}
	return &Store{db: db}, nil
}

// Stored reports whether an event type is kept in history.
func Stored(t logic.EventType) bool {
	return t == logic.EventJam || t == logic.EventJamCleared
}

// Record stores JAM and JAM_CLEARED events and ignores the rest, returning
// an empty id for ignored events.
func (s *Store) Record(ctx context.Context, event logic.Event) (string, error) {
	if !Stored(event.Type) {
		return "", nil
	}
	id := uuid.Must(uuid.NewV7()).String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jam_events (event_id, occurred_at, event_type, mode, reason, elapsed_ms, expected_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		event.Timestamp.UTC().Format(timeLayout),
		string(event.Type),
		event.Mode.String(),
		string(event.Reason),
		event.Elapsed.Milliseconds(),
		event.Expected.Milliseconds(),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert history event")
	}
	return id, nil
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, occurred_at, event_type, mode, reason, elapsed_ms, expected_ms
FROM jam_events ORDER BY occurred_at DESC, event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query history")
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                   Entry
			at                  string
			elapsedMS, expectMS int64
		)
		if err := rows.Scan(&e.ID, &at, &e.Type, &e.Mode, &e.Reason, &elapsedMS, &expectMS); err != nil {
			return nil, errors.Wrap(err, "scan history row")
		}
		if e.Timestamp, err = time.Parse(timeLayout, at); err != nil {
			return nil, errors.Wrapf(err, "parse history timestamp %q", at)
		}
		e.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		e.Expected = time.Duration(expectMS) * time.Millisecond
		e.ElapsedS = e.Elapsed.Seconds()
		e.ExpectedS = e.Expected.Seconds()
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate history")
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
