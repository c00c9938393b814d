// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/modelregistry"
	"github.com/axonkernel/orchestrator/shared/logger"
	"github.com/axonkernel/orchestrator/workerpool"
)

func noopLauncher(role, _ string, _ json.RawMessage) (*exec.Cmd, error) {
	return nil, fmt.Errorf("adapters_test: no worker runtime for role %q", role)
}

func newEmptyPool(t *testing.T, maxConcurrent int) *workerpool.Pool {
	t.Helper()
	pool := workerpool.NewPool(noopLauncher, workerpool.Config{MaxConcurrent: maxConcurrent},
		workerpool.NewMemoryStateStore(), audit.NewMemoryStore(), logger.New("adapters-test"))
	t.Cleanup(func() { _ = pool.Shutdown(context.Background()) })
	return pool
}

func TestPoolAgentCheckerReportsSpareCapacityOnEmptyPool(t *testing.T) {
	checker := PoolAgentChecker{Pool: newEmptyPool(t, 3), MaxConcurrent: 3}

	available, err := checker.AgentAvailable("pm")
	require.NoError(t, err)
	require.True(t, available, "an empty pool below MaxConcurrent should report availability")
}

func TestPoolAgentCheckerUnboundedWhenMaxConcurrentIsZero(t *testing.T) {
	checker := PoolAgentChecker{Pool: newEmptyPool(t, 1)}

	available, err := checker.AgentAvailable("pm")
	require.NoError(t, err)
	require.True(t, available, "MaxConcurrent <= 0 means no cap is enforced")
}

func newBudgetRegistry(t *testing.T) *modelregistry.Service {
	t.Helper()
	catalog := modelregistry.NewCatalog()
	catalog.LoadModels(modelregistry.ModelMetadata{ModelID: "gpt-4", Provider: "openai", Enabled: true})
	return modelregistry.NewService(catalog, modelregistry.NewMemoryRepository())
}

func TestBudgetResourceCheckerAllowsSpendWithinBudget(t *testing.T) {
	registry := newBudgetRegistry(t)
	require.NoError(t, registry.RecordCost(context.Background(), "gpt-4", "pm", "task-1", 1000, 500, 10.0))

	checker := BudgetResourceChecker{Registry: registry, DailyBudget: 100.0}
	available, err := checker.ResourceAvailable("budget", 5.0)
	require.NoError(t, err)
	require.True(t, available)
}

func TestBudgetResourceCheckerRejectsSpendOverBudget(t *testing.T) {
	registry := newBudgetRegistry(t)
	require.NoError(t, registry.RecordCost(context.Background(), "gpt-4", "pm", "task-1", 1000, 500, 90.0))

	checker := BudgetResourceChecker{Registry: registry, DailyBudget: 100.0}
	available, err := checker.ResourceAvailable("budget", 20.0)
	require.NoError(t, err)
	require.False(t, available, "projected spend of 110 should exceed the 100 budget")
}

func TestBudgetResourceCheckerIgnoresNonBudgetResourceType(t *testing.T) {
	checker := BudgetResourceChecker{Registry: newBudgetRegistry(t), DailyBudget: 0}
	available, err := checker.ResourceAvailable("gpu_hours", 1000.0)
	require.NoError(t, err)
	require.True(t, available, "only the budget resource type is gated")
}
