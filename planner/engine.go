// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"context"
	"sync"

	"github.com/axonkernel/orchestrator/kernelerr"
	"github.com/axonkernel/orchestrator/workflow"
)

// Planner is the C7 facade: it wraps the stateless generate/validate/
// approval operations around a stateful Executor, and tracks
// ExecutionPlans and ApprovalWorkflows by id for later decide/apply/
// cancel calls.
type Planner struct {
	executor *Executor

	mu        sync.Mutex
	execPlans map[string]*ExecutionPlan
	approvals map[string]*ApprovalWorkflow
}

// NewPlanner wires a Planner around executor.
func NewPlanner(executor *Executor) *Planner {
	return &Planner{
		executor:  executor,
		execPlans: make(map[string]*ExecutionPlan),
		approvals: make(map[string]*ApprovalWorkflow),
	}
}

// Generate runs generate() and registers the result for later lookup.
func (p *Planner) Generate(plan *workflow.WorkflowPlan, level string) (*ExecutionPlan, error) {
	ep, err := Generate(plan, level)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.execPlans[ep.ID] = ep
	p.mu.Unlock()
	return ep, nil
}

// Validate runs validate() against a previously generated ExecutionPlan.
func (p *Planner) Validate(execPlanID string, plan *workflow.WorkflowPlan) ([]string, error) {
	ep, ok := p.getExecPlan(execPlanID)
	if !ok {
		return nil, kernelerr.ErrPlanNotFound
	}
	return Validate(ep, plan), nil
}

// CreateApprovalWorkflow builds and registers an approval workflow for a
// previously generated ExecutionPlan.
func (p *Planner) CreateApprovalWorkflow(execPlanID string, plan *workflow.WorkflowPlan, level string) (*ApprovalWorkflow, error) {
	ep, ok := p.getExecPlan(execPlanID)
	if !ok {
		return nil, kernelerr.ErrPlanNotFound
	}
	aw := CreateApprovalWorkflow(ep, plan, level)
	p.mu.Lock()
	p.approvals[aw.ID] = aw
	p.mu.Unlock()
	return aw, nil
}

// Decide applies one decision to a registered approval workflow's current
// gate, computing the auto-approve context from the workflow's
// ExecutionPlan.
func (p *Planner) Decide(approvalWorkflowID, decision, user, reason string) error {
	aw, ok := p.getApproval(approvalWorkflowID)
	if !ok {
		return kernelerr.ErrPlanNotFound
	}
	ep, ok := p.getExecPlan(aw.PlanID)
	if !ok {
		return kernelerr.ErrPlanNotFound
	}
	var totalCost float64
	for _, c := range ep.CostBreakdown {
		totalCost += c
	}
	var criticalMinutes float64
	for _, id := range ep.CriticalPath {
		criticalMinutes += ep.Tasks[id].EstimatedDuration.Minutes()
	}
	return Decide(aw, decision, user, reason, totalCost, criticalMinutes)
}

// ApplyModification applies mod to the ExecutionPlan backing
// approvalWorkflowID.
func (p *Planner) ApplyModification(approvalWorkflowID string, mod PlanModification, requester string) error {
	aw, ok := p.getApproval(approvalWorkflowID)
	if !ok {
		return kernelerr.ErrPlanNotFound
	}
	ep, ok := p.getExecPlan(aw.PlanID)
	if !ok {
		return kernelerr.ErrPlanNotFound
	}
	return ApplyModification(aw, ep, mod, requester)
}

// Execute dispatches a WorkflowPlan/ExecutionPlan pair for execution.
// Callers should confirm the corresponding ApprovalWorkflow.Status is
// approved first; Execute itself does not re-check approval state, since
// some callers (dry runs, tests) legitimately execute without one.
func (p *Planner) Execute(ctx context.Context, plan *workflow.WorkflowPlan, execPlanID string) (*WorkflowExecution, error) {
	ep, ok := p.getExecPlan(execPlanID)
	if !ok {
		return nil, kernelerr.ErrPlanNotFound
	}
	return p.executor.Execute(ctx, plan, ep)
}

// Cancel requests cancellation of a running execution.
func (p *Planner) Cancel(executionID string) error {
	return p.executor.Cancel(executionID)
}

func (p *Planner) getExecPlan(id string) (*ExecutionPlan, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ep, ok := p.execPlans[id]
	return ep, ok
}

func (p *Planner) getApproval(id string) (*ApprovalWorkflow, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	aw, ok := p.approvals[id]
	return aw, ok
}
