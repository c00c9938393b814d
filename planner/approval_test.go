// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"testing"

	"github.com/axonkernel/orchestrator/kernelerr"
)

func simpleExecPlan(t *testing.T) *ExecutionPlan {
	t.Helper()
	ep, err := Generate(projectCreationPlan(), "standard")
	if err != nil {
		t.Fatalf("unexpected error generating plan: %v", err)
	}
	return ep
}

func TestCreateApprovalWorkflowSimplePlanHasTwoGates(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")
	if len(aw.Gates) != 2 {
		t.Fatalf("len(Gates) = %d, want 2 for a simple plan", len(aw.Gates))
	}
	if aw.Gates[0].Name != "Plan Review" || aw.Gates[1].Name != "Execution Authorization" {
		t.Errorf("gate names = [%s %s], want [Plan Review Execution Authorization]", aw.Gates[0].Name, aw.Gates[1].Name)
	}
}

func TestCreateApprovalWorkflowComplexPlanHasThreeGates(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanComplex
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")
	if len(aw.Gates) != 3 {
		t.Fatalf("len(Gates) = %d, want 3 for a complex plan", len(aw.Gates))
	}
	if aw.Gates[1].Name != "Risk Assessment" {
		t.Errorf("gates[1].Name = %q, want Risk Assessment", aw.Gates[1].Name)
	}
}

func TestDecideApprovesViaAutoApprovePredicate(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")

	if err := Decide(aw, "approve", "alice", "", 500, 400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aw.Gates[0].Status != GateApproved {
		t.Errorf("Gates[0].Status = %v, want approved", aw.Gates[0].Status)
	}
	if aw.CurrentGateIndex != 1 {
		t.Errorf("CurrentGateIndex = %d, want 1", aw.CurrentGateIndex)
	}
	if aw.Status != WorkflowPending {
		t.Errorf("Status = %v, want pending (one gate remains)", aw.Status)
	}
}

func TestDecideRejectsWhenAutoApprovePredicateFails(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")

	err := Decide(aw, "approve", "alice", "", 5000, 400)
	if err == nil {
		t.Fatal("expected an error when cost exceeds the auto-approve threshold")
	}
	if aw.Gates[0].Status == GateApproved {
		t.Error("gate should not be approved when a required criterion fails")
	}
}

func TestDecideAdvancesThroughAllGatesToApproved(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")

	if err := Decide(aw, "approve", "alice", "", 500, 400); err != nil {
		t.Fatalf("unexpected error on gate 1: %v", err)
	}
	if err := Decide(aw, "approve", "alice", "", 500, 400); err != nil {
		t.Fatalf("unexpected error on gate 2: %v", err)
	}
	if aw.Status != WorkflowApproved {
		t.Errorf("Status = %v, want approved after all gates pass", aw.Status)
	}
}

func TestDecideRejectIsTerminal(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")

	if err := Decide(aw, "reject", "bob", "too risky", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aw.Status != WorkflowRejected {
		t.Errorf("Status = %v, want rejected", aw.Status)
	}

	err := Decide(aw, "approve", "bob", "", 0, 0)
	if !errorsIsGateTerminal(err) {
		t.Errorf("expected ErrGateTerminal deciding an already-rejected gate, got %v", err)
	}
}

func errorsIsGateTerminal(err error) bool {
	kind, ok := kernelerr.KindOf(err)
	return ok && kind == kernelerr.KindValidation && err != nil
}

func TestApplyModificationResetsWorkflowToPending(t *testing.T) {
	ep := simpleExecPlan(t)
	ep.Complexity = PlanSimple
	aw := CreateApprovalWorkflow(ep, projectCreationPlan(), "standard")

	if err := Decide(aw, "modify", "carol", "buffer too thin", 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if aw.Status != WorkflowRequiresModification {
		t.Fatalf("Status = %v, want requires_modification", aw.Status)
	}

	mod := PlanModification{ID: "mod-1", Kind: ModTimelineChange, NewValue: 90}
	if err := ApplyModification(aw, ep, mod, "carol"); err != nil {
		t.Fatalf("unexpected error applying modification: %v", err)
	}
	if aw.Status != WorkflowPending {
		t.Errorf("Status = %v, want pending after modification applied", aw.Status)
	}
	if ep.BufferMinutes != 90 {
		t.Errorf("BufferMinutes = %d, want 90", ep.BufferMinutes)
	}
	if aw.ModificationCount != 1 {
		t.Errorf("ModificationCount = %d, want 1", aw.ModificationCount)
	}
}
