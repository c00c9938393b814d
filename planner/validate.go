// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"fmt"

	"github.com/axonkernel/orchestrator/workflow"
)

// DefaultHighCostThreshold is the configurable cost threshold above which
// Validate warns, per spec.md §4.7.1; callers needing a different
// threshold should call ValidateWithThreshold directly.
const DefaultHighCostThreshold = 5000.0

// MinimumBufferMinutes is the floor below which Validate warns that the
// plan's timeline buffer is too thin.
const MinimumBufferMinutes = 30

// Validate returns human-readable warnings for execPlan given the
// originating workflow.WorkflowPlan, per spec.md §4.7.1's validate().
func Validate(execPlan *ExecutionPlan, plan *workflow.WorkflowPlan) []string {
	return ValidateWithThreshold(execPlan, plan, DefaultHighCostThreshold)
}

// ValidateWithThreshold is Validate with an explicit high-cost threshold.
func ValidateWithThreshold(execPlan *ExecutionPlan, plan *workflow.WorkflowPlan, highCostThreshold float64) []string {
	var warnings []string

	if execPlan == nil || plan == nil {
		return []string{"missing execution plan or source plan"}
	}

	if len(execPlan.Tasks) == 0 {
		warnings = append(warnings, "missing task breakdown")
	}

	assignedRoles := make(map[string]bool, len(plan.Assignments))
	for _, a := range plan.Assignments {
		assignedRoles[a.Role] = true
	}
	coveredRoles := make(map[string]bool, len(execPlan.Tasks))
	for _, t := range execPlan.Tasks {
		coveredRoles[t.Role] = true
	}
	for role := range assignedRoles {
		if !coveredRoles[role] {
			warnings = append(warnings, fmt.Sprintf("missing agent coverage for role %q", role))
		}
	}

	var totalCost float64
	for _, c := range execPlan.CostBreakdown {
		totalCost += c
	}
	if totalCost > highCostThreshold {
		warnings = append(warnings, fmt.Sprintf("cost %.2f exceeds threshold %.2f", totalCost, highCostThreshold))
	}

	if len(execPlan.CriticalPath) == 0 && len(execPlan.Tasks) > 0 {
		warnings = append(warnings, "undefined critical path")
	}

	for _, t := range execPlan.Tasks {
		for _, dep := range t.Dependencies {
			if dep == t.ID {
				warnings = append(warnings, fmt.Sprintf("task %q depends on itself", t.ID))
			}
		}
	}

	if execPlan.EarliestStart.IsZero() || execPlan.LatestFinish.IsZero() || !execPlan.LatestFinish.After(execPlan.EarliestStart) {
		warnings = append(warnings, "missing timeline")
	}

	if execPlan.BufferMinutes < MinimumBufferMinutes {
		warnings = append(warnings, fmt.Sprintf("timeline buffer %dm is below the %dm minimum", execPlan.BufferMinutes, MinimumBufferMinutes))
	}

	var highProbRisks, mitigationCount int
	for _, r := range execPlan.Risks {
		if r.Probability >= 0.5 {
			highProbRisks++
		}
	}
	mitigationCount = len(execPlan.Mitigations)
	if highProbRisks > mitigationCount {
		warnings = append(warnings, fmt.Sprintf("%d high-probability risks but only %d mitigations", highProbRisks, mitigationCount))
	}

	return warnings
}
