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

	_ "github.com/go-sql-driver/mysql"

	"github.com/axonkernel/orchestrator/shared/logger"
)

// MySQLStore is the same audit_entries schema as PostgresStore, adapted to
// MySQL's `?` placeholders and LAST_INSERT_ID() instead of RETURNING. It
// exists as the alternate backing driver behind RepositoryKind (spec.md
// deployments that standardize on MySQL rather than postgres); the default
// path in Open remains postgres.
type MySQLStore struct {
	db     *sql.DB
	log    *logger.Logger
	closed chan struct{}
	once   sync.Once
}

// NewMySQLStore opens a connection and ensures the schema exists.
func NewMySQLStore(ctx context.Context, dsn string, log *logger.Logger) (*MySQLStore, error) {
	if log == nil {
		log = logger.New("audit")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: ping mysql: %w", err)
	}
	if err := createMySQLTables(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("audit: create schema: %w", err)
	}
	return &MySQLStore{db: db, log: log, closed: make(chan struct{})}, nil
}

func createMySQLTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS audit_entries (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		ts DATETIME(6) NOT NULL,
		kind VARCHAR(32) NOT NULL,
		severity VARCHAR(16) NOT NULL,
		user_id VARCHAR(255),
		request_id VARCHAR(255),
		workflow_id VARCHAR(255),
		agent_id VARCHAR(255),
		action VARCHAR(255) NOT NULL,
		category VARCHAR(128) NOT NULL,
		payload JSON,
		INDEX idx_audit_entries_ts (ts DESC),
		INDEX idx_audit_entries_user (user_id),
		INDEX idx_audit_entries_request (request_id),
		INDEX idx_audit_entries_workflow (workflow_id),
		INDEX idx_audit_entries_kind (kind),
		INDEX idx_audit_entries_category (category),
		INDEX idx_audit_entries_severity (severity)
	);
	`)
	return err
}

func (s *MySQLStore) Record(ctx context.Context, entry Entry) (int64, error) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return 0, fmt.Errorf("audit: marshal payload: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(ts, kind, severity, user_id, request_id, workflow_id, agent_id, action, category, payload)
		VALUES (?,?,?,?,?,?,?,?,?,?)
	`, entry.Timestamp, entry.Kind, entry.Severity, entry.Actors.UserID, entry.Actors.RequestID,
		entry.Actors.WorkflowID, entry.Actors.AgentID, entry.Action, entry.Category, payload,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: insert entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("audit: read insert id: %w", err)
	}
	return id, nil
}

func (s *MySQLStore) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, ts, kind, severity, user_id, request_id, workflow_id, agent_id, action, category, payload
		FROM audit_entries WHERE 1=1`
	var args []any
	add := func(clause string, val any) {
		query += fmt.Sprintf(" AND %s ?", clause)
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

func (s *MySQLStore) RequestTrail(ctx context.Context, requestID string) ([]Entry, error) {
	entries, err := s.Query(ctx, Filter{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *MySQLStore) ErrorSummary(ctx context.Context, window time.Duration) (ErrorSummary, error) {
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

func (s *MySQLStore) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_entries WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit: cleanup: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *MySQLStore) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		err = s.db.Close()
	})
	return err
}
