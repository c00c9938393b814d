// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockPostgresStore(t *testing.T, db *sql.DB) *PostgresStore {
	t.Helper()
	return &PostgresStore{
		db:     db,
		closed: make(chan struct{}),
	}
}

func TestPostgresStoreRecordInsertsAndReturnsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("INSERT INTO audit_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	store := newMockPostgresStore(t, db)
	id, err := store.Record(context.Background(), Entry{
		Kind:     KindRequest,
		Severity: SeverityInfo,
		Actors:   Actors{RequestID: "r1"},
		Action:   "start",
		Category: "gateway",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 7 {
		t.Errorf("id = %d, want 7", id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStoreRecordPropagatesInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("INSERT INTO audit_entries").
		WillReturnError(fmt.Errorf("connection reset"))

	store := newMockPostgresStore(t, db)
	_, err = store.Record(context.Background(), Entry{Kind: KindRequest})
	if err == nil {
		t.Fatal("expected error when insert fails, got nil")
	}
}

func TestPostgresStoreQueryBuildsFilterPredicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{
		"id", "ts", "kind", "severity", "user_id", "request_id", "workflow_id",
		"agent_id", "action", "category", "payload",
	}).AddRow(
		int64(1), time.Now(), KindError, SeverityError, "alice", "r1", "wf1",
		"", "route", "routing", []byte(`{"error_type":"timeout"}`),
	)
	mock.ExpectQuery("SELECT (.+) FROM audit_entries WHERE 1=1 AND user_id = (.+) AND kind = (.+) ORDER BY").
		WithArgs("alice", KindError).
		WillReturnRows(rows)

	store := newMockPostgresStore(t, db)
	entries, err := store.Query(context.Background(), Filter{UserID: "alice", Kind: KindError})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Payload.ErrorType != "timeout" {
		t.Errorf("ErrorType = %q, want timeout", entries[0].Payload.ErrorType)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestPostgresStoreCleanupReturnsRowsAffected(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectExec("DELETE FROM audit_entries WHERE ts <").
		WillReturnResult(sqlmock.NewResult(0, 3))

	store := newMockPostgresStore(t, db)
	removed, err := store.Cleanup(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
}

func TestPostgresStoreCloseIsIdempotent(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}

	store := newMockPostgresStore(t, db)
	if err := store.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}
}
