// Package audit persists a per-call audit trail of tool executions in
// sqlite. The trail answers "what did the agent actually do" after the
// fact: one row per admitted call, none for policy blocks.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
)

const schema = `
CREATE TABLE IF NOT EXISTS tool_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL DEFAULT '',
	call_id TEXT NOT NULL,
	tool TEXT NOT NULL,
	signature TEXT NOT NULL,
	success INTEGER NOT NULL,
	cached INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_session ON tool_calls(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_tool_calls_tool ON tool_calls(tool);
`

// Store records tool calls in a sqlite database. Implements the
// runtime's Recorder.
type Store struct {
	db *sql.DB
}

// Open creates a store at path, creating the schema if needed.
// ":memory:" is accepted for ephemeral sessions.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// modernc sqlite serializes writes itself; a second writer
	// connection only produces SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// NewWithDB wraps an existing database handle. The caller owns the
// handle's lifecycle and schema.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate audit db: %w", err)
	}
	return nil
}

// Record inserts one audit entry.
func (s *Store) Record(ctx context.Context, entry runtime.AuditEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tool_calls (session_id, call_id, tool, signature, success, cached, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.CallID,
		entry.Tool,
		entry.Signature,
		entry.Success,
		entry.Cached,
		entry.Duration.Milliseconds(),
		entry.Error,
	)
	if err != nil {
		return fmt.Errorf("record tool call: %w", err)
	}
	return nil
}

// Row is one persisted audit entry.
type Row struct {
	SessionID string
	CallID    string
	Tool      string
	Signature string
	Success   bool
	Cached    bool
	Duration  time.Duration
	Error     string
	CreatedAt time.Time
}

// Recent returns the latest entries for a session, newest first.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, call_id, tool, signature, success, cached, duration_ms, error, created_at
		 FROM tool_calls WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit trail: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var durationMs int64
		if err := rows.Scan(&r.SessionID, &r.CallID, &r.Tool, &r.Signature,
			&r.Success, &r.Cached, &durationMs, &r.Error, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// FailureRate reports the failure fraction per tool across all sessions,
// for diagnosing tools the agent consistently struggles with.
func (s *Store) FailureRate(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool, AVG(CASE WHEN success THEN 0.0 ELSE 1.0 END) FROM tool_calls GROUP BY tool`)
	if err != nil {
		return nil, fmt.Errorf("query failure rates: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var tool string
		var rate float64
		if err := rows.Scan(&tool, &rate); err != nil {
			return nil, fmt.Errorf("scan failure rate: %w", err)
		}
		out[tool] = rate
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
