// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package modelregistry is the static model catalog plus the rolling
// cost and performance observation store (component C2). Its shape
// mirrors the teacher's orchestrator/cost package — an append-only
// Repository behind a Service that computes aggregates on read — but
// generalizes cost tracking to also cover per-model performance and
// quality observations, per spec.md §4.2.
package modelregistry

import "time"

// ModelMetadata describes a single backend model endpoint.
type ModelMetadata struct {
	ModelID          string   `json:"model_id"`
	Provider         string   `json:"provider"`
	CapabilityTags   []string `json:"capability_tags"`
	PricePer1kIn     float64  `json:"price_per_1k_in"`
	PricePer1kOut    float64  `json:"price_per_1k_out"`
	RequestsPerMin   int      `json:"requests_per_min"`
	TokensPerMin     int      `json:"tokens_per_min"`
	ContextWindow    int      `json:"context_window"`
	AvgResponseMs    float64  `json:"avg_response_ms"`
	Enabled          bool     `json:"enabled"`
}

// CostRecord is a single, append-only record of a model call's cost.
type CostRecord struct {
	ID         int64     `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ModelID    string    `json:"model_id"`
	Role       string    `json:"role"`
	TaskID     string    `json:"task_id"`
	InTokens   int       `json:"in_tokens"`
	OutTokens  int       `json:"out_tokens"`
	CostUSD    float64   `json:"cost_usd"`
}

// PerformanceRecord is a single, append-only record of a model call's
// latency, success, and optional quality score.
type PerformanceRecord struct {
	ID         int64     `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	ModelID    string    `json:"model_id"`
	Role       string    `json:"role"`
	TaskID     string    `json:"task_id"`
	LatencyMs  float64   `json:"latency_ms"`
	Success    bool      `json:"success"`
	Quality    *float64  `json:"quality,omitempty"`
}

// CostSummary is the result of cost_summary(): totals and breakdowns
// over a time range.
type CostSummary struct {
	Start              time.Time          `json:"start"`
	End                time.Time          `json:"end"`
	TotalCostUSD       float64            `json:"total_cost_usd"`
	TotalRequests      int                `json:"total_requests"`
	TotalInTokens      int                `json:"total_in_tokens"`
	TotalOutTokens     int                `json:"total_out_tokens"`
	AvgCostPerRequest  float64            `json:"avg_cost_per_request"`
	ByModel            map[string]float64 `json:"by_model"`
	ByRole             map[string]float64 `json:"by_role"`
	ByProvider         map[string]float64 `json:"by_provider"`
	HourlyBuckets      map[string]float64 `json:"hourly_buckets"`
	TopExpensiveTasks  []TaskCost         `json:"top_expensive_tasks"`
}

// TaskCost pairs a task id with its aggregate cost, for top-N reporting.
type TaskCost struct {
	TaskID  string  `json:"task_id"`
	CostUSD float64 `json:"cost_usd"`
}

// BudgetStatus is the result of budget_status().
type BudgetStatus struct {
	DailyBudgetUSD float64 `json:"daily_budget_usd"`
	CurrentSpend   float64 `json:"current_spend"`
	UtilizationPct float64 `json:"utilization_pct"`
	IsOverBudget   bool    `json:"is_over_budget"`
	RemainingUSD   float64 `json:"remaining_usd"`
}

// PerformanceReport is the result of performance().
type PerformanceReport struct {
	ModelID      string        `json:"model_id"`
	WindowHours  int           `json:"window_hours"`
	RequestCount int           `json:"request_count"`
	SuccessCount int           `json:"success_count"`
	FailureCount int           `json:"failure_count"`
	SuccessRate  float64       `json:"success_rate"`
	P50Latency   time.Duration `json:"p50_latency"`
	P95Latency   time.Duration `json:"p95_latency"`
	P99Latency   time.Duration `json:"p99_latency"`
	AvgLatency   time.Duration `json:"avg_latency"`
	AvgQuality   float64       `json:"avg_quality"`
}

// Filters narrows cost_summary() to a subset of models/roles/providers.
// A zero-valued field is unconstrained.
type Filters struct {
	ModelID  string
	Role     string
	Provider string
	TopN     int
}

// CalculateCost implements the exact invariant of spec.md §8.1:
// cost = in_tokens/1000·in_price + out_tokens/1000·out_price.
func CalculateCost(meta ModelMetadata, inTokens, outTokens int) float64 {
	return float64(inTokens)/1000*meta.PricePer1kIn + float64(outTokens)/1000*meta.PricePer1kOut
}
