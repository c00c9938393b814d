// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonkernel/orchestrator/shared/logger"
)

// PostgresStore is a single-writer, many-reader embedded store keyed by
// entry id with secondary indexes on timestamp/user/request/workflow/kind/
// category/severity, matching the schema shape of the teacher's
// orchestrator/audit_logger.go audit_logs table.
type PostgresStore struct {
	db     *sql.DB
	log    *logger.Logger
	closed chan struct{}
	once   sync.Once
}

// NewPostgresStore opens a connection and ensures the schema exists. Unlike
// the teacher, it returns an error instead of degrading to a no-op logger:
// spec.md §4.1 requires that a write fails loudly when the store is
// unreachable.
func NewPostgresStore(ctx context.Context, dsn string, log *logger.Logger) (*PostgresStore, error) {
	if log == nil {
		log = logger.New("audit")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping postgres: %w", err)
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}

	s := &PostgresStore{
		db:     db,
		log:    log,
		closed: make(chan struct{}),
	}
	return s, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		kind VARCHAR(32) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		user_id VARCHAR(255),
		request_id VARCHAR(255),
		workflow_id VARCHAR(255),
		agent_id VARCHAR(255),
		action VARCHAR(255) NOT NULL,
		category VARCHAR(128) NOT NULL,
		payload JSONB
	);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries(ts DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_user ON audit_entries(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_request ON audit_entries(request_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_workflow ON audit_entries(workflow_id);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_kind ON audit_entries(kind);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_category ON audit_entries(category);
	CREATE INDEX IF NOT EXISTS idx_audit_entries_severity ON audit_entries(severity);
	`)
	return err
}

// Record persists one entry synchronously and returns the id assigned by
// the database sequence. A direct insert (rather than the teacher's
// queued BatchWriter) is used deliberately: spec.md §4.1 requires that a
// write failure propagate to the caller, which a fire-and-forget queue
// cannot guarantee.
func (s *PostgresStore) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal payload: %w", err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO audit_entries
			(ts, kind, severity, user_id, request_id, workflow_id, agent_id, action, category, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id
	`, entry.Timestamp, entry.Kind, entry.Severity, entry.Actors.UserID, entry.Actors.RequestID,
		entry.Actors.WorkflowID, entry.Actors.AgentID, entry.Action, entry.Category, payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("audit: insert entry: %w", err)
	}
	return id, nil
}

// Query returns entries matching filter, newest-first.
func (s *PostgresStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, ts, kind, severity, user_id, request_id, workflow_id, agent_id, action, category, payload
		FROM audit_entries WHERE 1=1`
	var args []any
	n := 0
	add := func(clause string, val any) {
		n++
		query += fmt.Sprintf(" AND %s $%d", clause, n)
		args = append(args, val)
	}
	if filter.UserID != "" {
		add("user_id =", filter.UserID)
	}
	if filter.RequestID != "" {
		add("request_id =", filter.RequestID)
	}
	if filter.WorkflowID != "" {
		add("workflow_id =", filter.WorkflowID)
	}
	if filter.Kind != "" {
		add("kind =", filter.Kind)
	}
	if filter.Category != "" {
		add("category =", filter.Category)
	}
	if filter.Severity != "" {
		add("severity =", filter.Severity)
	}
	if !filter.Since.IsZero() {
		add("ts >=", filter.Since)
	}
	if !filter.Until.IsZero() {
		add("ts <=", filter.Until)
	}
	query += " ORDER BY ts DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Kind, &e.Severity, &e.Actors.UserID,
			&e.Actors.RequestID, &e.Actors.WorkflowID, &e.Actors.AgentID, &e.Action, &e.Category, &payload); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		_ = json.Unmarshal(payload, &e.Payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RequestTrail(ctx context.Context, requestID string) ([]Entry, error) {
	entries, err := s.Query(ctx, Filter{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	// request_trail is the full ORDERED history; present chronologically
	// (oldest first) rather than Query's newest-first default.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *PostgresStore) ErrorSummary(ctx context.Context, window time.Duration) (ErrorSummary, error) {
	since := time.Now().Add(-window)
	entries, err := s.Query(ctx, Filter{Kind: KindError, Since: since})
	if err != nil {
		return ErrorSummary{}, err
	}
	summary := ErrorSummary{
		Window:      window,
		CountByType: map[string]int{},
		CountByOp:   map[string]int{},
	}
	for _, e := range entries {
		if e.Payload.ErrorType != "" {
			summary.CountByType[e.Payload.ErrorType]++
		}
		summary.CountByOp[e.Action]++
	}
	summary.RecentErrors = entries
	return summary, nil
}

// Cleanup deletes entries older than retention. Best-effort and idempotent.
func (s *PostgresStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE ts < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *PostgresStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.db.Close()
	})
	return err
}
