// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"errors"
	"testing"
)

type fixedAgentChecker struct {
	available bool
	err       error
}

func (f fixedAgentChecker) AgentAvailable(role string) (bool, error) { return f.available, f.err }

type fixedResourceChecker struct {
	available bool
	err       error
}

func (f fixedResourceChecker) ResourceAvailable(resourceType string, amount float64) (bool, error) {
	return f.available, f.err
}

func TestValidatePrerequisitesOKWhenEverythingSatisfied(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternSequential, Prerequisites: []string{"docker"}}
	plan := &WorkflowPlan{Assignments: []AgentAssignment{{Role: "pm"}}}

	result := ValidatePrerequisites(plan, template,
		StubPrerequisiteChecker{Known: map[string]bool{"docker": true}},
		fixedAgentChecker{available: true},
		fixedResourceChecker{available: true},
	)
	if !result.OK {
		t.Errorf("OK = false, want true: missing=%v warnings=%v", result.MissingPrereqs, result.Warnings)
	}
	if len(result.MissingPrereqs) != 0 {
		t.Errorf("MissingPrereqs = %v, want empty", result.MissingPrereqs)
	}
}

func TestValidatePrerequisitesReportsMissingPrereq(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternSequential, Prerequisites: []string{"docker", "kubernetes"}}
	plan := &WorkflowPlan{}

	result := ValidatePrerequisites(plan, template,
		StubPrerequisiteChecker{Known: map[string]bool{"docker": true}},
		nil, nil,
	)
	if result.OK {
		t.Error("OK = true, want false with a missing prerequisite")
	}
	if len(result.MissingPrereqs) != 1 || result.MissingPrereqs[0] != "kubernetes" {
		t.Errorf("MissingPrereqs = %v, want [kubernetes]", result.MissingPrereqs)
	}
}

func TestValidatePrerequisitesWarnsOnUnavailableAgent(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternSequential}
	plan := &WorkflowPlan{Assignments: []AgentAssignment{{Role: "qa"}}}

	result := ValidatePrerequisites(plan, template, nil, fixedAgentChecker{available: false}, nil)
	if result.OK {
		t.Error("OK = true, want false when no agent is available")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("len(Warnings) = %d, want 1", len(result.Warnings))
	}
}

func TestValidatePrerequisitesWarnsOnCheckerError(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternSequential}
	plan := &WorkflowPlan{Resources: []ResourceRequirement{{Type: "budget", Amount: 10}}}

	result := ValidatePrerequisites(plan, template, nil, nil, fixedResourceChecker{err: errors.New("unreachable")})
	if result.OK {
		t.Error("OK = true, want false when a resource check errors")
	}
}

func TestEstimateSetupSecondsBaseline(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternSequential}
	plan := &WorkflowPlan{Assignments: []AgentAssignment{{Role: "pm"}, {Role: "ba"}}}

	secs := estimateSetupSeconds(plan, template, 0)
	if secs != 15 {
		t.Errorf("estimateSetupSeconds = %d, want 15", secs)
	}
}

func TestEstimateSetupSecondsAddsMissingPrereqsPatternAndAgentSurcharge(t *testing.T) {
	template := &WorkflowTemplate{Pattern: PatternHierarchical}
	plan := &WorkflowPlan{Assignments: []AgentAssignment{
		{Role: "pm"}, {Role: "ba"}, {Role: "sa"}, {Role: "qa"}, {Role: "dev"},
	}}

	secs := estimateSetupSeconds(plan, template, 2)
	want := 15 + 30*2 + 20 + 10*2
	if secs != want {
		t.Errorf("estimateSetupSeconds = %d, want %d", secs, want)
	}
}
