// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"context"

	"github.com/axonkernel/orchestrator/modelregistry"
	"github.com/axonkernel/orchestrator/workerpool"
)

// PoolAgentChecker adapts a worker pool (C5) to AgentAvailabilityChecker:
// a role is available if at least one of its workers is idle, or if the
// pool has spare capacity to spawn one.
type PoolAgentChecker struct {
	Pool          *workerpool.Pool
	MaxConcurrent int
}

func (c PoolAgentChecker) AgentAvailable(role string) (bool, error) {
	for _, wp := range c.Pool.StatusAll() {
		if wp.Role == role && wp.Status == workerpool.StatusIdle {
			return true, nil
		}
	}
	if c.MaxConcurrent <= 0 {
		return true, nil
	}
	return len(c.Pool.StatusAll()) < c.MaxConcurrent, nil
}

// BudgetResourceChecker adapts a model registry service (C2) to
// ResourceAvailabilityChecker for the "budget" resource type: amount is
// available iff the projected spend would not exceed dailyBudget.
type BudgetResourceChecker struct {
	Registry    *modelregistry.Service
	DailyBudget float64
}

func (c BudgetResourceChecker) ResourceAvailable(resourceType string, amount float64) (bool, error) {
	if resourceType != "budget" {
		return true, nil
	}
	status, err := c.Registry.BudgetStatus(context.Background(), c.DailyBudget)
	if err != nil {
		return false, err
	}
	return status.CurrentSpend+amount <= c.DailyBudget, nil
}
