// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package modelregistry

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Service is the C2 facade: catalog lookups plus cost/performance
// recording and aggregation, mirroring the teacher's cost.Service split
// between a thin Repository and a Service that computes derived values
// on read.
type Service struct {
	catalog *Catalog
	repo    Repository
}

func NewService(catalog *Catalog, repo Repository) *Service {
	return &Service{catalog: catalog, repo: repo}
}

// Catalog exposes the underlying model catalog for callers (e.g. C4) that
// need metadata lookups directly.
func (s *Service) Catalog() *Catalog { return s.catalog }

// RecordCost appends a CostRecord with timestamp "now", storing costUSD
// as given. It does not consult the catalog's pricing; CalculateCost
// computes a cost from it.
func (s *Service) RecordCost(ctx context.Context, modelID, role, taskID string, inTokens, outTokens int, costUSD float64) error {
	return s.repo.SaveCostRecord(ctx, &CostRecord{
		Timestamp: time.Now().UTC(),
		ModelID:   modelID,
		Role:      role,
		TaskID:    taskID,
		InTokens:  inTokens,
		OutTokens: outTokens,
		CostUSD:   costUSD,
	})
}

// RecordPerformance appends a PerformanceRecord with timestamp "now".
func (s *Service) RecordPerformance(ctx context.Context, modelID, role, taskID string, latencyMs float64, success bool, quality *float64) error {
	return s.repo.SavePerformanceRecord(ctx, &PerformanceRecord{
		Timestamp: time.Now().UTC(),
		ModelID:   modelID,
		Role:      role,
		TaskID:    taskID,
		LatencyMs: latencyMs,
		Success:   success,
		Quality:   quality,
	})
}

// CostSummary returns totals and breakdowns for [start, end], matching
// spec.md §4.2's aggregation contract: the aggregate equals the sum of
// individual records matching the range and filter exactly.
func (s *Service) CostSummary(ctx context.Context, start, end time.Time, f Filters) (CostSummary, error) {
	records, err := s.repo.ListCostRecords(ctx, start, end, f)
	if err != nil {
		return CostSummary{}, fmt.Errorf("modelregistry: cost summary: %w", err)
	}

	summary := CostSummary{
		Start:         start,
		End:           end,
		ByModel:       map[string]float64{},
		ByRole:        map[string]float64{},
		ByProvider:    map[string]float64{},
		HourlyBuckets: map[string]float64{},
	}
	taskCosts := map[string]float64{}

	for _, r := range records {
		if f.Provider != "" {
			meta, ok := s.catalog.Get(r.ModelID)
			if !ok || meta.Provider != f.Provider {
				continue
			}
		}
		summary.TotalCostUSD += r.CostUSD
		summary.TotalRequests++
		summary.TotalInTokens += r.InTokens
		summary.TotalOutTokens += r.OutTokens
		summary.ByModel[r.ModelID] += r.CostUSD
		summary.ByRole[r.Role] += r.CostUSD
		if meta, ok := s.catalog.Get(r.ModelID); ok {
			summary.ByProvider[meta.Provider] += r.CostUSD
		}
		bucket := r.Timestamp.Truncate(time.Hour).Format(time.RFC3339)
		summary.HourlyBuckets[bucket] += r.CostUSD
		taskCosts[r.TaskID] += r.CostUSD
	}

	if summary.TotalRequests > 0 {
		summary.AvgCostPerRequest = summary.TotalCostUSD / float64(summary.TotalRequests)
	}

	topN := f.TopN
	if topN <= 0 {
		topN = 10
	}
	summary.TopExpensiveTasks = topExpensiveTasks(taskCosts, topN)

	return summary, nil
}

func topExpensiveTasks(costs map[string]float64, topN int) []TaskCost {
	out := make([]TaskCost, 0, len(costs))
	for id, c := range costs {
		out = append(out, TaskCost{TaskID: id, CostUSD: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CostUSD != out[j].CostUSD {
			return out[i].CostUSD > out[j].CostUSD
		}
		return out[i].TaskID < out[j].TaskID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// BudgetStatus reports the current day's spend against dailyBudget per
// spec.md §4.2 and the boundary invariant of §8.3: is_over_budget is true
// iff spend strictly exceeds the budget.
func (s *Service) BudgetStatus(ctx context.Context, dailyBudget float64) (BudgetStatus, error) {
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	spend, err := s.repo.SpendSince(ctx, dayStart)
	if err != nil {
		return BudgetStatus{}, fmt.Errorf("modelregistry: budget status: %w", err)
	}

	var utilization float64
	if dailyBudget > 0 {
		utilization = spend / dailyBudget * 100
	}
	if utilization < 0 {
		utilization = 0
	}

	remaining := dailyBudget - spend
	if remaining < 0 {
		remaining = 0
	}

	return BudgetStatus{
		DailyBudgetUSD: dailyBudget,
		CurrentSpend:   spend,
		UtilizationPct: utilization,
		IsOverBudget:   spend > dailyBudget,
		RemainingUSD:   remaining,
	}, nil
}

// Performance returns request counts, success rate, percentile latencies,
// and average quality for modelID over the trailing windowHours.
func (s *Service) Performance(ctx context.Context, modelID string, windowHours int) (PerformanceReport, error) {
	since := time.Now().Add(-time.Duration(windowHours) * time.Hour)
	records, err := s.repo.ListPerformanceRecords(ctx, modelID, since)
	if err != nil {
		return PerformanceReport{}, fmt.Errorf("modelregistry: performance: %w", err)
	}

	report := PerformanceReport{ModelID: modelID, WindowHours: windowHours}
	hist := newLatencyHistogram()
	var qualitySum float64
	var qualityCount int

	for _, r := range records {
		report.RequestCount++
		if r.Success {
			report.SuccessCount++
		} else {
			report.FailureCount++
		}
		hist.record(time.Duration(r.LatencyMs * float64(time.Millisecond)))
		if r.Quality != nil {
			qualitySum += *r.Quality
			qualityCount++
		}
	}

	if report.RequestCount > 0 {
		report.SuccessRate = float64(report.SuccessCount) / float64(report.RequestCount)
	}
	if qualityCount > 0 {
		report.AvgQuality = qualitySum / float64(qualityCount)
	}
	report.P50Latency = hist.percentile(0.5)
	report.P95Latency = hist.percentile(0.95)
	report.P99Latency = hist.percentile(0.99)
	report.AvgLatency = hist.average()

	return report, nil
}
