package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	if err := Init(db); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestEvent_Written(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	l := New(db)
	l.Event(ctx, Event{RunID: "run_1", Type: "run_started", Offset: -1, Success: true})
	l.Event(ctx, Event{RunID: "run_1", Type: "frame_captured", Offset: 600, Success: true})
	l.Event(ctx, Event{RunID: "run_1", Type: "frame_captured", Offset: 1200, Success: false})

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM run_events WHERE run_id = 'run_1'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	var offset sql.NullInt64
	if err := db.QueryRow(
		"SELECT scroll_offset FROM run_events WHERE event_type = 'run_started'").Scan(&offset); err != nil {
		t.Fatal(err)
	}
	if offset.Valid {
		t.Errorf("run_started offset = %v, want NULL for n/a", offset.Int64)
	}
}

func TestEvent_NilLogIsNoop(t *testing.T) {
	var l *Log
	// Must not panic.
	l.Event(context.Background(), Event{RunID: "x", Type: "run_started", Offset: -1})
}

func TestCleanup(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	old := time.Now().Unix() - 90*86400
	if _, err := db.Exec(`
		INSERT INTO run_events (event_id, run_id, event_type, success, created_at)
		VALUES ('evt_old', 'run_0', 'run_finished', 1, ?)`, old); err != nil {
		t.Fatal(err)
	}
	New(db).Event(ctx, Event{RunID: "run_1", Type: "run_started", Offset: -1, Success: true})

	if err := Cleanup(ctx, db, 30); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM run_events").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("count after cleanup = %d, want 1", count)
	}

	// Retention 0 disables cleanup.
	if err := Cleanup(ctx, db, 0); err != nil {
		t.Fatal(err)
	}
}
