// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"context"
	"testing"
)

func TestPlannerGenerateValidateApproveExecuteFlow(t *testing.T) {
	p := NewPlanner(NewExecutor(newFakeDispatcher(), fakeModelCaller{}, nil, nil))
	plan := projectCreationPlan()

	ep, err := p.Generate(plan, "standard")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	warnings, err := p.Validate(ep.ID, plan)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	aw, err := p.CreateApprovalWorkflow(ep.ID, plan, "standard")
	if err != nil {
		t.Fatalf("CreateApprovalWorkflow: %v", err)
	}
	for range aw.Gates {
		if err := p.Decide(aw.ID, "approve", "alice", ""); err != nil {
			t.Fatalf("Decide: %v", err)
		}
	}
	if aw.Status != WorkflowApproved {
		t.Fatalf("Status = %v, want approved", aw.Status)
	}

	exec, err := p.Execute(context.Background(), plan, ep.ID)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if exec.State != ExecCompleted {
		t.Errorf("State = %v, want completed", exec.State)
	}
}

func TestPlannerOperationsErrorOnUnknownID(t *testing.T) {
	p := NewPlanner(NewExecutor(newFakeDispatcher(), fakeModelCaller{}, nil, nil))
	if _, err := p.Validate("missing", projectCreationPlan()); err == nil {
		t.Error("expected error validating an unknown exec plan id")
	}
	if _, err := p.CreateApprovalWorkflow("missing", projectCreationPlan(), "standard"); err == nil {
		t.Error("expected error creating an approval workflow for an unknown exec plan id")
	}
	if err := p.Decide("missing", "approve", "alice", ""); err == nil {
		t.Error("expected error deciding an unknown approval workflow id")
	}
}
