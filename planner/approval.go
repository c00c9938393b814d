// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/axonkernel/orchestrator/kernelerr"
	"github.com/axonkernel/orchestrator/workflow"
)

// DefaultGateExpiry is added to a gate's creation time to set its Expiry.
// Decide does not compare Expiry with the current time, so a pending gate
// stays decidable after Expiry has passed.
const DefaultGateExpiry = 72 * time.Hour

// CreateApprovalWorkflow builds the ordered gate sequence for execPlan,
// per spec.md §4.7.2: Plan Review always; Risk Assessment for
// complex/enterprise plans; Execution Authorization always last.
func CreateApprovalWorkflow(execPlan *ExecutionPlan, plan *workflow.WorkflowPlan, level string) *ApprovalWorkflow {
	now := planStartTime()
	gates := []VerificationGate{
		newPlanReviewGate(execPlan, level, now),
	}
	if execPlan.Complexity == PlanComplex || execPlan.Complexity == PlanEnterprise {
		gates = append(gates, newRiskAssessmentGate(level, now))
	}
	gates = append(gates, newExecutionAuthorizationGate(level, now))

	return &ApprovalWorkflow{
		ID:               uuid.New().String(),
		PlanID:           execPlan.ID,
		Gates:            gates,
		CurrentGateIndex: 0,
		Status:           WorkflowPending,
	}
}

func newPlanReviewGate(execPlan *ExecutionPlan, level string, now time.Time) VerificationGate {
	var totalCost float64
	for _, c := range execPlan.CostBreakdown {
		totalCost += c
	}
	return VerificationGate{
		ID:            uuid.New().String(),
		Name:          "Plan Review",
		RequiredLevel: level,
		Criteria: []ApprovalCriterion{
			{Name: "cost_within_budget", Required: true, AutoApprove: fmt.Sprintf("cost < %g", DefaultHighCostThreshold)},
			{Name: "duration_reasonable", Required: true, AutoApprove: "duration <= 480"},
		},
		Status: GatePending,
		Expiry: now.Add(DefaultGateExpiry),
	}
}

func newRiskAssessmentGate(level string, now time.Time) VerificationGate {
	return VerificationGate{
		ID:            uuid.New().String(),
		Name:          "Risk Assessment",
		RequiredLevel: level,
		Criteria: []ApprovalCriterion{
			{Name: "risks_mitigated", Required: true},
		},
		Status: GatePending,
		Expiry: now.Add(DefaultGateExpiry),
	}
}

func newExecutionAuthorizationGate(level string, now time.Time) VerificationGate {
	return VerificationGate{
		ID:            uuid.New().String(),
		Name:          "Execution Authorization",
		RequiredLevel: level,
		Criteria: []ApprovalCriterion{
			{Name: "final_sign_off", Required: true},
		},
		Status: GatePending,
		Expiry: now.Add(DefaultGateExpiry),
	}
}

// gateContext is what auto-approve predicates of the form "field op
// value" evaluate against.
type gateContext struct {
	cost     float64
	duration float64 // minutes
}

// evaluateAutoApprove parses and evaluates a predicate like "cost < 1000"
// or "duration <= 480" against ctx. Returns false, false if the
// predicate's field is unrecognized.
func evaluateAutoApprove(predicate string, ctx gateContext) (result bool, recognized bool) {
	fields := strings.Fields(predicate)
	if len(fields) != 3 {
		return false, false
	}
	field, op, rawValue := fields[0], fields[1], fields[2]
	value, err := strconv.ParseFloat(rawValue, 64)
	if err != nil {
		return false, false
	}

	var actual float64
	switch field {
	case "cost":
		actual = ctx.cost
	case "duration":
		actual = ctx.duration
	default:
		return false, false
	}

	switch op {
	case "<":
		return actual < value, true
	case "<=":
		return actual <= value, true
	case ">":
		return actual > value, true
	case ">=":
		return actual >= value, true
	case "==":
		return actual == value, true
	default:
		return false, false
	}
}

// criteriaMet reports whether every required criterion for gate is
// satisfied given ctx: each required criterion with an auto-approve
// predicate must evaluate true; a required criterion with no predicate is
// manually approvable by construction (spec.md §9 resolves this in favor
// of requiring an explicit manual decision, enforced by the caller of
// Decide rather than here).
func criteriaMet(gate VerificationGate, ctx gateContext) bool {
	for _, c := range gate.Criteria {
		if !c.Required {
			continue
		}
		if c.AutoApprove == "" {
			continue // no predicate: manual approval governs, not this check
		}
		ok, recognized := evaluateAutoApprove(c.AutoApprove, ctx)
		if !recognized || !ok {
			return false
		}
	}
	return true
}

// Decide applies one decision to the workflow's current gate, per
// spec.md §4.7.2. cost and durationMinutes supply the values auto-approve
// predicates evaluate against (typically derived from the ExecutionPlan
// being gated).
func Decide(aw *ApprovalWorkflow, decision, user, reason string, cost, durationMinutes float64) error {
	if aw.CurrentGateIndex >= len(aw.Gates) {
		return kernelerr.ErrGateTerminal
	}
	gate := &aw.Gates[aw.CurrentGateIndex]
	if gate.Status.terminal() {
		return kernelerr.ErrGateTerminal
	}

	now := planStartTime()
	aw.DecisionHistory = append(aw.DecisionHistory, Decision{
		GateID: gate.ID, Kind: decision, User: user, Reason: reason, At: now,
	})

	switch decision {
	case "approve":
		ctx := gateContext{cost: cost, duration: durationMinutes}
		if !criteriaMet(gate, ctx) {
			return kernelerr.New(kernelerr.KindValidation, "planner.Decide", "required approval criteria not met")
		}
		gate.Status = GateApproved
		gate.Approver = user
		aw.CurrentGateIndex++
		if aw.CurrentGateIndex >= len(aw.Gates) {
			aw.Status = WorkflowApproved
		}
	case "reject":
		gate.Status = GateRejected
		gate.Approver = user
		gate.RejectionReason = reason
		aw.Status = WorkflowRejected
	case "modify":
		gate.Status = GatePending // stays open; apply_modification resets the workflow to pending
		aw.Status = WorkflowRequiresModification
	default:
		return kernelerr.New(kernelerr.KindValidation, "planner.Decide", "unknown decision: "+decision)
	}
	return nil
}

// ApplyModification validates and applies mod to execPlan, updates the
// field it targets, records an impact assessment, and resets aw to
// pending so the gate sequence can be re-decided, per spec.md §4.7.2.
func ApplyModification(aw *ApprovalWorkflow, execPlan *ExecutionPlan, mod PlanModification, requester string) error {
	if aw.Status != WorkflowRequiresModification {
		return kernelerr.New(kernelerr.KindValidation, "planner.ApplyModification", "workflow is not awaiting modification")
	}

	before := snapshotForImpact(execPlan)
	switch mod.Kind {
	case ModTimelineChange:
		minutes, ok := mod.NewValue.(int)
		if !ok {
			return kernelerr.New(kernelerr.KindValidation, "planner.ApplyModification", "timeline_change requires an int minutes value")
		}
		coreDuration := execPlan.LatestFinish.Sub(execPlan.EarliestStart) - time.Duration(before.bufferMinutes)*time.Minute
		execPlan.BufferMinutes = minutes
		execPlan.LatestFinish = execPlan.EarliestStart.Add(coreDuration + time.Duration(minutes)*time.Minute)
	case ModResourceAdjustment:
		usage, ok := mod.NewValue.(map[string]float64)
		if !ok {
			return kernelerr.New(kernelerr.KindValidation, "planner.ApplyModification", "resource_adjustment requires a peak usage map")
		}
		execPlan.PeakResourceUsage = usage
	case ModScopeModification:
		tasks, ok := mod.NewValue.(map[string]TaskDetail)
		if !ok {
			return kernelerr.New(kernelerr.KindValidation, "planner.ApplyModification", "scope_modification requires a task breakdown")
		}
		execPlan.Tasks = tasks
	case ModAgentChange, ModDependencyUpdate, ModPriorityChange:
		// These affect the originating workflow.WorkflowPlan rather than
		// the ExecutionPlan directly; recorded for audit/impact purposes
		// but the caller is responsible for re-running Generate if the
		// task breakdown must change shape.
	default:
		return kernelerr.New(kernelerr.KindValidation, "planner.ApplyModification", "unknown modification kind")
	}

	after := snapshotForImpact(execPlan)
	mod.Impact = ImpactAssessment{
		CostDelta:     after.totalCost - before.totalCost,
		DurationDelta: after.latestFinish.Sub(after.earliestStart) - before.latestFinish.Sub(before.earliestStart),
		RiskLevel:     riskLevelFor(execPlan),
	}
	mod.Requester = requester

	aw.ModificationCount++
	gate := &aw.Gates[aw.CurrentGateIndex]
	gate.Modifications = append(gate.Modifications, mod.ID)
	aw.Status = WorkflowPending
	return nil
}

type planSnapshot struct {
	totalCost     float64
	bufferMinutes int
	earliestStart time.Time
	latestFinish  time.Time
}

func snapshotForImpact(ep *ExecutionPlan) planSnapshot {
	var cost float64
	for _, c := range ep.CostBreakdown {
		cost += c
	}
	return planSnapshot{
		totalCost:     cost,
		bufferMinutes: ep.BufferMinutes,
		earliestStart: ep.EarliestStart,
		latestFinish:  ep.LatestFinish,
	}
}

func riskLevelFor(ep *ExecutionPlan) string {
	var highest float64
	for _, r := range ep.Risks {
		if p := r.Probability * r.Impact; p > highest {
			highest = p
		}
	}
	switch {
	case highest >= 0.5:
		return "high"
	case highest >= 0.2:
		return "medium"
	default:
		return "low"
	}
}
