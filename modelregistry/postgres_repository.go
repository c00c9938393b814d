// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package modelregistry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRepository implements Repository against the cost_records and
// performance_records tables named in spec.md §6.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the append-only tables and their indexes if absent.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS cost_records (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		model_id VARCHAR(128) NOT NULL,
		role VARCHAR(64) NOT NULL,
		task_id VARCHAR(255) NOT NULL,
		in_tokens INT NOT NULL,
		out_tokens INT NOT NULL,
		cost_usd DOUBLE PRECISION NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_cost_records_ts ON cost_records(ts);
	CREATE INDEX IF NOT EXISTS idx_cost_records_model ON cost_records(model_id);
	CREATE INDEX IF NOT EXISTS idx_cost_records_role ON cost_records(role);

	CREATE TABLE IF NOT EXISTS performance_records (
		id BIGSERIAL PRIMARY KEY,
		ts TIMESTAMPTZ NOT NULL,
		model_id VARCHAR(128) NOT NULL,
		role VARCHAR(64) NOT NULL,
		task_id VARCHAR(255) NOT NULL,
		latency_ms DOUBLE PRECISION NOT NULL,
		success BOOLEAN NOT NULL,
		quality DOUBLE PRECISION
	);
	CREATE INDEX IF NOT EXISTS idx_performance_records_ts ON performance_records(ts);
	CREATE INDEX IF NOT EXISTS idx_performance_records_model ON performance_records(model_id);
	`)
	return err
}

func (r *PostgresRepository) SaveCostRecord(ctx context.Context, rec *CostRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO cost_records (ts, model_id, role, task_id, in_tokens, out_tokens, cost_usd)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id
	`, rec.Timestamp, rec.ModelID, rec.Role, rec.TaskID, rec.InTokens, rec.OutTokens, rec.CostUSD).Scan(&rec.ID)
}

func (r *PostgresRepository) SavePerformanceRecord(ctx context.Context, rec *PerformanceRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO performance_records (ts, model_id, role, task_id, latency_ms, success, quality)
		VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id
	`, rec.Timestamp, rec.ModelID, rec.Role, rec.TaskID, rec.LatencyMs, rec.Success, rec.Quality).Scan(&rec.ID)
}

func (r *PostgresRepository) ListCostRecords(ctx context.Context, since, until time.Time, f Filters) ([]CostRecord, error) {
	query := `SELECT id, ts, model_id, role, task_id, in_tokens, out_tokens, cost_usd
		FROM cost_records WHERE ts >= $1 AND ts <= $2`
	args := []any{since, until}
	n := 2
	if f.ModelID != "" {
		n++
		query += fmt.Sprintf(" AND model_id = $%d", n)
		args = append(args, f.ModelID)
	}
	if f.Role != "" {
		n++
		query += fmt.Sprintf(" AND role = $%d", n)
		args = append(args, f.Role)
	}
	// Provider is not a column here; the Service layer resolves it via a
	// Catalog lookup and filters the result set in memory.
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("modelregistry: list cost records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CostRecord
	for rows.Next() {
		var c CostRecord
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.ModelID, &c.Role, &c.TaskID, &c.InTokens, &c.OutTokens, &c.CostUSD); err != nil {
			return nil, fmt.Errorf("modelregistry: scan cost record: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) ListPerformanceRecords(ctx context.Context, modelID string, since time.Time) ([]PerformanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, ts, model_id, role, task_id, latency_ms, success, quality
		FROM performance_records WHERE model_id = $1 AND ts >= $2
	`, modelID, since)
	if err != nil {
		return nil, fmt.Errorf("modelregistry: list performance records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []PerformanceRecord
	for rows.Next() {
		var p PerformanceRecord
		if err := rows.Scan(&p.ID, &p.Timestamp, &p.ModelID, &p.Role, &p.TaskID, &p.LatencyMs, &p.Success, &p.Quality); err != nil {
			return nil, fmt.Errorf("modelregistry: scan performance record: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SpendSince(ctx context.Context, since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT SUM(cost_usd) FROM cost_records WHERE ts >= $1`, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("modelregistry: spend since: %w", err)
	}
	return total.Float64, nil
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
