// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package planner implements component C7, the execution planner and
// orchestrator: it turns a workflow.WorkflowPlan into a detailed
// ExecutionPlan, gates it through an approval workflow, and drives its
// execution against the worker pool (C5) and model router (C4).
package planner

import (
	"time"

	"github.com/axonkernel/orchestrator/workflow"
)

// PlanComplexity is ExecutionPlan's derived complexity tier, distinct
// from workflow.Complexity (the request-facing low/medium/high tag).
type PlanComplexity string

const (
	PlanSimple     PlanComplexity = "simple"
	PlanModerate   PlanComplexity = "moderate"
	PlanComplex    PlanComplexity = "complex"
	PlanEnterprise PlanComplexity = "enterprise"
)

// complexityScore and its thresholds classify a plan per spec.md §3:
// score = |agents| + 0.5*|deps| + 0.3*|resources|; thresholds 3/6/10.
func classifyComplexity(agents, deps, resources int) PlanComplexity {
	score := float64(agents) + 0.5*float64(deps) + 0.3*float64(resources)
	switch {
	case score < 3:
		return PlanSimple
	case score < 6:
		return PlanModerate
	case score < 10:
		return PlanComplex
	default:
		return PlanEnterprise
	}
}

// TaskDetail is one node of an ExecutionPlan's task breakdown.
type TaskDetail struct {
	ID                string
	Name              string
	Role              string
	EstimatedDuration time.Duration
	Deliverables      []string
	SuccessCriteria   []string
	Dependencies      []string // ids of prerequisite TaskDetails
}

// RiskCategory names the source of a risk assessed during generate().
type RiskCategory string

const (
	RiskResource          RiskCategory = "resource"
	RiskAgentCoordination RiskCategory = "agent_coordination"
	RiskTimeline          RiskCategory = "timeline"
)

// Risk is one identified risk with its likelihood and impact.
type Risk struct {
	Category    RiskCategory
	Description string
	Probability float64 // [0,1]
	Impact      float64 // [0,1]
}

// Mitigation addresses a Risk by category; Contingency is populated only
// for complex+ plans, per spec.md §4.7.1.
type Mitigation struct {
	Category    RiskCategory
	Description string
	Contingency string
}

// QualityCheckpoint marks a point in the plan where output quality is
// reviewed, attached by pattern per spec.md §4.7.1.
type QualityCheckpoint struct {
	AfterRole string
	Criteria  []string
}

// ExecutionPlan is the derived detail behind a workflow.WorkflowPlan,
// per spec.md §3.
type ExecutionPlan struct {
	ID              string
	PlanID          string // workflow.WorkflowPlan.ID this was generated from
	Complexity      PlanComplexity
	ValidationLevel string

	Tasks             map[string]TaskDetail
	CriticalPath      []string
	ParallelGroups    [][]string
	PeakResourceUsage map[string]float64
	CostBreakdown     map[string]float64

	Risks       []Risk
	Mitigations []Mitigation

	QualityCheckpoints []QualityCheckpoint

	EarliestStart time.Time
	LatestFinish  time.Time
	BufferMinutes int
}

// GateStatus is a VerificationGate's position in its lifecycle.
type GateStatus string

const (
	GatePending  GateStatus = "pending"
	GateApproved GateStatus = "approved"
	GateRejected GateStatus = "rejected"
	GateExpired  GateStatus = "expired"
)

func (s GateStatus) terminal() bool {
	return s == GateApproved || s == GateRejected || s == GateExpired
}

// ApprovalCriterion is one named condition a gate checks, optionally with
// an auto-approve predicate of the form "field op value".
type ApprovalCriterion struct {
	Name        string
	Required    bool
	AutoApprove string // e.g. "cost < 1000"; empty means manual-only
}

// VerificationGate is one stage of an ApprovalWorkflow.
type VerificationGate struct {
	ID               string
	Name             string
	RequiredLevel    string
	Criteria         []ApprovalCriterion
	Status           GateStatus
	Expiry           time.Time
	UserFeedback     []string
	Modifications    []string // PlanModification ids applied while this gate was open
	Approver         string
	RejectionReason  string
}

// ApprovalWorkflowStatus is the overall workflow's position, advancing
// linearly across its gates.
type ApprovalWorkflowStatus string

const (
	WorkflowPending             ApprovalWorkflowStatus = "pending"
	WorkflowApproved            ApprovalWorkflowStatus = "approved"
	WorkflowRejected            ApprovalWorkflowStatus = "rejected"
	WorkflowRequiresModification ApprovalWorkflowStatus = "requires_modification"
	WorkflowExpired             ApprovalWorkflowStatus = "expired"
)

// ApprovalWorkflow gates an ExecutionPlan through its VerificationGates.
type ApprovalWorkflow struct {
	ID                  string
	PlanID              string
	Gates               []VerificationGate
	CurrentGateIndex    int
	Status              ApprovalWorkflowStatus
	ModificationCount   int
	DecisionHistory      []Decision
}

// Decision is one recorded decide() call.
type Decision struct {
	GateID string
	Kind   string // approve, reject, modify
	User   string
	Reason string
	At     time.Time
}

// ModificationKind names what a PlanModification changes.
type ModificationKind string

const (
	ModAgentChange        ModificationKind = "agent_change"
	ModResourceAdjustment ModificationKind = "resource_adjustment"
	ModTimelineChange     ModificationKind = "timeline_change"
	ModScopeModification  ModificationKind = "scope_modification"
	ModDependencyUpdate   ModificationKind = "dependency_update"
	ModPriorityChange     ModificationKind = "priority_change"
)

// ImpactAssessment is attached to every PlanModification when applied.
type ImpactAssessment struct {
	CostDelta     float64
	DurationDelta time.Duration
	RiskLevel     string
}

// PlanModification records one requested change to an ExecutionPlan.
type PlanModification struct {
	ID       string
	PlanID   string
	Kind     ModificationKind
	OldValue any
	NewValue any
	Reason   string
	Requester string
	Approver  string
	Impact    ImpactAssessment
}

// ExecutionState is a WorkflowExecution's lifecycle position.
type ExecutionState string

const (
	ExecPending   ExecutionState = "pending"
	ExecRunning   ExecutionState = "running"
	ExecPaused    ExecutionState = "paused"
	ExecCompleted ExecutionState = "completed"
	ExecFailed    ExecutionState = "failed"
	ExecCancelled ExecutionState = "cancelled"
	execCancelling ExecutionState = "cancelling" // internal-only, not in spec's public state enum
)

// Checkpoint captures everything needed to resume an execution, recorded
// after every task completion per spec.md §4.7.3.
type Checkpoint struct {
	CompletedTasks map[string]bool
	InFlightTasks  map[string]bool
	RecordedAt     time.Time
}

// TaskExecResult is one task's outcome, keyed into WorkflowExecution.Results.
type TaskExecResult struct {
	TaskID        string
	WorkerID      string
	Status        string // completed, failed, cancelled, timeout
	Output        []byte
	ExecutionTime time.Duration
	Confidence    float64
	Tokens        int
	Cost          float64
	Error         string
}

// WorkflowExecution tracks one in-progress or completed run of a
// WorkflowPlan through the planner's execute().
type WorkflowExecution struct {
	ID             string
	PlanID         string
	State          ExecutionState
	CompletedTasks map[string]bool
	InFlightTasks  map[string]bool
	Results        map[string]TaskExecResult
	Checkpoints    []Checkpoint
	StartedAt      time.Time
	EndedAt        time.Time

	plan     *workflow.WorkflowPlan
	execPlan *ExecutionPlan
}

// FirstFailure returns the task id and error descriptor of the first task
// that failed, or ("", "") if none has.
func (e *WorkflowExecution) FirstFailure() (taskID, cause string) {
	for id, r := range e.Results {
		if r.Status == "failed" || r.Status == "timeout" {
			if taskID == "" || id < taskID {
				taskID, cause = id, r.Error
			}
		}
	}
	return taskID, cause
}
