// CLAUDE:SUMMARY SQLite-backed run event log: non-blocking writes, schema init, retention cleanup.
// Package audit records comparison-run events in a SQLite database so that
// operators can reconstruct what a past run did without keeping its output.
//
// Writes are non-blocking by contract: a failing audit store is logged via
// slog and never propagates into the run.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/viewdiff/idgen"
)

// Schema contains the complete DDL for the audit tables. Call Init(db) to
// apply it, or embed the constant in your own schema management.
const Schema = `
CREATE TABLE IF NOT EXISTS run_events (
    event_id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    scroll_offset INTEGER,
    detail TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_run_events_run
    ON run_events(run_id, created_at);
CREATE INDEX IF NOT EXISTS idx_run_events_time
    ON run_events(created_at DESC);
`

// Init applies the audit schema.
func Init(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("audit: init schema: %w", err)
	}
	return nil
}

// Event is one run-level occurrence worth reconstructing later.
type Event struct {
	RunID string
	Type  string // run_started | geometry_measured | frame_captured | run_finished
	// Offset is the scroll offset for per-frame events; negative means n/a.
	Offset  int
	Detail  string // optional JSON or free text
	Success bool
}

// Log writes run events. Safe for concurrent use.
type Log struct {
	db    *sql.DB
	newID idgen.Generator
}

// Option configures a Log.
type Option func(*Log)

// WithIDGenerator sets a custom event ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Log) { l.newID = gen }
}

// New creates a Log backed by the given database. The schema must already
// be applied (see Init).
func New(db *sql.DB, opts ...Option) *Log {
	l := &Log{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Event records one event. Non-blocking contract: errors are logged via
// slog but do not propagate.
func (l *Log) Event(ctx context.Context, ev Event) {
	if l == nil || l.db == nil {
		return
	}
	var offset any
	if ev.Offset >= 0 {
		offset = ev.Offset
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO run_events (event_id, run_id, event_type, scroll_offset, detail, success, created_at)
		VALUES (?,?,?,?,?,?,?)`,
		l.newID(), ev.RunID, ev.Type, offset, ev.Detail, ev.Success, time.Now().Unix())
	if err != nil {
		slog.Error("audit: event write failed", "error", err, "event_type", ev.Type, "run_id", ev.RunID)
	}
}

// Cleanup deletes events older than retentionDays. Zero or negative
// retention disables cleanup.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().Unix() - int64(retentionDays)*86400
	if _, err := db.ExecContext(ctx, "DELETE FROM run_events WHERE created_at < ?", cutoff); err != nil {
		return fmt.Errorf("audit: cleanup: %w", err)
	}
	return nil
}
