// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"testing"
	"time"

	"github.com/axonkernel/orchestrator/workflow"
)

func projectCreationPlan() *workflow.WorkflowPlan {
	return &workflow.WorkflowPlan{
		ID:      "plan-1",
		Pattern: workflow.PatternSequential,
		Assignments: []workflow.AgentAssignment{
			{Role: "pm", Priority: 1, Duration: 320 * time.Minute},
			{Role: "ba", Priority: 2, Duration: 320 * time.Minute},
			{Role: "sa", Priority: 2, Duration: 320 * time.Minute},
		},
		Dependencies: []workflow.TaskDependency{
			{Dependent: "ba", Prerequisite: "pm", Kind: workflow.DependencyCompletion, Blocking: true},
			{Dependent: "sa", Prerequisite: "ba", Kind: workflow.DependencyCompletion, Blocking: true},
		},
		TemplateID: "project_creation",
	}
}

func TestGenerateBuildsTaskBreakdownPerRole(t *testing.T) {
	ep, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ep.Tasks) == 0 {
		t.Fatal("expected a non-empty task breakdown")
	}
	for id, task := range ep.Tasks {
		if task.Role == "" {
			t.Errorf("task %q has no role", id)
		}
	}
}

func TestGenerateCriticalPathIsBoundedAndSorted(t *testing.T) {
	ep, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ep.CriticalPath) > CriticalPathTopN {
		t.Errorf("len(CriticalPath) = %d, want <= %d", len(ep.CriticalPath), CriticalPathTopN)
	}
	for _, id := range ep.CriticalPath {
		if _, ok := ep.Tasks[id]; !ok {
			t.Errorf("critical path references unknown task %q", id)
		}
	}
}

func TestGenerateNoSelfDependencies(t *testing.T) {
	ep, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for id, task := range ep.Tasks {
		for _, dep := range task.Dependencies {
			if dep == id {
				t.Errorf("task %q depends on itself", id)
			}
		}
	}
}

func TestGenerateTimelineHasTwentyPercentBuffer(t *testing.T) {
	ep, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var criticalTotal time.Duration
	for _, id := range ep.CriticalPath {
		criticalTotal += ep.Tasks[id].EstimatedDuration
	}
	wantBuffer := time.Duration(float64(criticalTotal) * DefaultTimelineBufferPercent)
	gotBuffer := time.Duration(ep.BufferMinutes) * time.Minute
	if gotBuffer != wantBuffer {
		t.Errorf("buffer = %v, want %v", gotBuffer, wantBuffer)
	}
	if !ep.LatestFinish.After(ep.EarliestStart) {
		t.Error("LatestFinish should be after EarliestStart")
	}
}

func TestGenerateComplexPlanGetsContingencies(t *testing.T) {
	plan := &workflow.WorkflowPlan{
		ID:      "plan-big",
		Pattern: workflow.PatternHierarchical,
		Assignments: []workflow.AgentAssignment{
			{Role: "pm", Duration: time.Hour}, {Role: "ba", Duration: time.Hour},
			{Role: "sa", Duration: time.Hour}, {Role: "qa", Duration: time.Hour},
			{Role: "researcher", Duration: time.Hour},
		},
		Dependencies: []workflow.TaskDependency{
			{Dependent: "ba", Prerequisite: "pm"}, {Dependent: "sa", Prerequisite: "pm"},
			{Dependent: "qa", Prerequisite: "ba"}, {Dependent: "researcher", Prerequisite: "sa"},
		},
		Resources: []workflow.ResourceRequirement{
			{Type: "compute", Amount: 4, Critical: true},
			{Type: "budget", Amount: 100, CostEstimate: 500},
		},
	}
	ep, err := Generate(plan, "enterprise")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ep.Complexity != PlanComplex && ep.Complexity != PlanEnterprise {
		t.Fatalf("Complexity = %v, want complex or enterprise for a 5-agent/4-dep/2-resource plan", ep.Complexity)
	}
	foundContingency := false
	for _, m := range ep.Mitigations {
		if m.Contingency != "" {
			foundContingency = true
		}
	}
	if !foundContingency {
		t.Error("expected at least one mitigation with a contingency for a complex+ plan")
	}
}

func TestGenerateQualityCheckpointsFollowPattern(t *testing.T) {
	seq, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seq.QualityCheckpoints) != len(projectCreationPlan().Assignments) {
		t.Errorf("sequential checkpoints = %d, want one per role (%d)", len(seq.QualityCheckpoints), len(projectCreationPlan().Assignments))
	}

	parallelPlan := projectCreationPlan()
	parallelPlan.Pattern = workflow.PatternParallel
	par, err := Generate(parallelPlan, "standard")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(par.QualityCheckpoints) != 1 {
		t.Errorf("parallel checkpoints = %d, want 1", len(par.QualityCheckpoints))
	}
}
