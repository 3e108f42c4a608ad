package audit

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/HathorNetwork/hathor-playground-sub001/internal/runtime"
)

func TestRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewWithDB(db)

	mock.ExpectExec("INSERT INTO tool_calls").
		WithArgs("sess-1", "call-1", "write_file", "write_file:abc123", true, false, int64(42), "").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = store.Record(context.Background(), runtime.AuditEntry{
		SessionID: "sess-1",
		CallID:    "call-1",
		Tool:      "write_file",
		Signature: "write_file:abc123",
		Success:   true,
		Duration:  42 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestRecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewWithDB(db)

	mock.ExpectExec("INSERT INTO tool_calls").
		WillReturnError(context.DeadlineExceeded)

	if err := store.Record(context.Background(), runtime.AuditEntry{Tool: "grep"}); err == nil {
		t.Error("expected the database error to propagate")
	}
}

func TestRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewWithDB(db)

	now := time.Now()
	mock.ExpectQuery("SELECT session_id, call_id, tool, signature, success, cached, duration_ms, error, created_at").
		WithArgs("sess-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"session_id", "call_id", "tool", "signature", "success", "cached", "duration_ms", "error", "created_at",
		}).
			AddRow("sess-1", "call-2", "read_file", "read_file:def", true, true, int64(3), "", now).
			AddRow("sess-1", "call-1", "write_file", "write_file:abc", false, false, int64(120), "disk full", now))

	rows, err := store.Recent(context.Background(), "sess-1", 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if !rows[0].Cached || rows[0].Tool != "read_file" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[1].Error != "disk full" || rows[1].Duration != 120*time.Millisecond {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}

func TestFailureRate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewWithDB(db)

	mock.ExpectQuery("SELECT tool, AVG").
		WillReturnRows(sqlmock.NewRows([]string{"tool", "rate"}).
			AddRow("run_command", 0.25).
			AddRow("read_file", 0.0))

	rates, err := store.FailureRate(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rates["run_command"] != 0.25 {
		t.Errorf("unexpected rate %v", rates["run_command"])
	}
}
