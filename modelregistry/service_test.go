// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package modelregistry

import (
	"context"
	"testing"
	"time"
)

func newTestCatalog() *Catalog {
	c := NewCatalog()
	c.LoadModels(
		ModelMetadata{ModelID: "gpt-4", Provider: "openai", PricePer1kIn: 0.03, PricePer1kOut: 0.06, Enabled: true, RequestsPerMin: 500},
		ModelMetadata{ModelID: "claude-3", Provider: "anthropic", PricePer1kIn: 0.015, PricePer1kOut: 0.075, Enabled: true, RequestsPerMin: 400},
	)
	return c
}

func TestCalculateCost(t *testing.T) {
	meta := ModelMetadata{PricePer1kIn: 0.03, PricePer1kOut: 0.06}
	got := CalculateCost(meta, 1000, 500)
	want := 1000.0/1000*0.03 + 500.0/1000*0.06
	if got != want {
		t.Errorf("CalculateCost() = %v, want %v", got, want)
	}
}

func TestRecordCostAndCostSummary(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	if err := svc.RecordCost(ctx, "gpt-4", "pm", "task-1", 1000, 500, 0.06); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.RecordCost(ctx, "claude-3", "ba", "task-2", 2000, 1000, 0.105); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now().Add(-time.Hour)
	end := time.Now().Add(time.Hour)
	summary, err := svc.CostSummary(ctx, start, end, Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Summed at run time, as CostSummary does: the constant expression
	// 0.06 + 0.105 folds to exactly 0.165, which float64 addition does not
	// produce.
	gpt4Cost, claudeCost := 0.06, 0.105
	wantTotal := gpt4Cost + claudeCost
	if summary.TotalCostUSD != wantTotal {
		t.Errorf("TotalCostUSD = %v, want %v", summary.TotalCostUSD, wantTotal)
	}
	if summary.TotalRequests != 2 {
		t.Errorf("TotalRequests = %d, want 2", summary.TotalRequests)
	}
	if summary.ByProvider["openai"] != 0.06 {
		t.Errorf("ByProvider[openai] = %v, want 0.06", summary.ByProvider["openai"])
	}
	if summary.AvgCostPerRequest != wantTotal/2 {
		t.Errorf("AvgCostPerRequest = %v, want %v", summary.AvgCostPerRequest, wantTotal/2)
	}
}

func TestCostSummaryFilterByProvider(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	_ = svc.RecordCost(ctx, "gpt-4", "pm", "t1", 100, 100, 1.0)
	_ = svc.RecordCost(ctx, "claude-3", "ba", "t2", 100, 100, 2.0)

	summary, err := svc.CostSummary(ctx, time.Now().Add(-time.Hour), time.Now().Add(time.Hour), Filters{Provider: "anthropic"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.TotalCostUSD != 2.0 {
		t.Errorf("TotalCostUSD = %v, want 2.0", summary.TotalCostUSD)
	}
	if summary.TotalRequests != 1 {
		t.Errorf("TotalRequests = %d, want 1", summary.TotalRequests)
	}
}

func TestBudgetStatusBoundaryNotOver(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	_ = svc.RecordCost(ctx, "gpt-4", "pm", "t1", 0, 0, 50.0)

	status, err := svc.BudgetStatus(ctx, 50.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.IsOverBudget {
		t.Error("spend == budget must not be over budget")
	}
	if status.UtilizationPct != 100 {
		t.Errorf("UtilizationPct = %v, want 100", status.UtilizationPct)
	}
}

func TestBudgetStatusOverWhenSpendExceeds(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	_ = svc.RecordCost(ctx, "gpt-4", "pm", "t1", 0, 0, 50.01)

	status, err := svc.BudgetStatus(ctx, 50.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.IsOverBudget {
		t.Error("spend > budget must be over budget")
	}
	if status.RemainingUSD != 0 {
		t.Errorf("RemainingUSD = %v, want 0 (clamped)", status.RemainingUSD)
	}
}

func TestBudgetStatusZeroBudgetClampsUtilization(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)

	status, err := svc.BudgetStatus(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.UtilizationPct != 0 {
		t.Errorf("UtilizationPct = %v, want 0", status.UtilizationPct)
	}
}

func TestPerformanceAggregatesSuccessRateAndLatency(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	q1, q2 := 0.9, 0.4
	_ = svc.RecordPerformance(ctx, "gpt-4", "pm", "t1", 100, true, &q1)
	_ = svc.RecordPerformance(ctx, "gpt-4", "pm", "t2", 200, true, &q2)
	_ = svc.RecordPerformance(ctx, "gpt-4", "pm", "t3", 300, false, nil)

	report, err := svc.Performance(ctx, "gpt-4", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", report.RequestCount)
	}
	if report.SuccessCount != 2 {
		t.Errorf("SuccessCount = %d, want 2", report.SuccessCount)
	}
	if report.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", report.FailureCount)
	}
	wantRate := 2.0 / 3.0
	if report.SuccessRate != wantRate {
		t.Errorf("SuccessRate = %v, want %v", report.SuccessRate, wantRate)
	}
	wantQuality := (0.9 + 0.4) / 2
	if report.AvgQuality != wantQuality {
		t.Errorf("AvgQuality = %v, want %v", report.AvgQuality, wantQuality)
	}
	if report.P50Latency == 0 {
		t.Error("expected non-zero P50Latency")
	}
}

func TestPerformanceExcludesRecordsOutsideWindow(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(newTestCatalog(), repo)
	ctx := context.Background()

	old := &PerformanceRecord{Timestamp: time.Now().Add(-48 * time.Hour), ModelID: "gpt-4", LatencyMs: 50, Success: true}
	_ = repo.SavePerformanceRecord(ctx, old)
	_ = svc.RecordPerformance(ctx, "gpt-4", "pm", "t1", 100, true, nil)

	report, err := svc.Performance(ctx, "gpt-4", 24)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", report.RequestCount)
	}
}

func TestCatalogLoadModelsAndListByCapability(t *testing.T) {
	catalog := NewCatalog()
	catalog.LoadModels(
		ModelMetadata{ModelID: "gpt-4", Enabled: true, CapabilityTags: []string{"code", "reasoning"}},
		ModelMetadata{ModelID: "claude-3", Enabled: true, CapabilityTags: []string{"code"}},
		ModelMetadata{ModelID: "disabled-model", Enabled: false, CapabilityTags: []string{"code"}},
	)

	models := catalog.ListByCapability("code")
	if len(models) != 2 {
		t.Fatalf("len(models) = %d, want 2", len(models))
	}

	_, ok := catalog.Get("unknown")
	if ok {
		t.Error("expected unknown model to be absent")
	}
}
