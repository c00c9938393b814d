// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/axonkernel/orchestrator/workflow"
)

// roleTaskNames gives each role's canonical task breakdown, per spec.md
// §4.7.1's example ("PM -> {Requirements Analysis, Stakeholder
// Communication, Project Planning, Risk Assessment}"), generalized to the
// other roles workflow.normalizeRole recognizes.
var roleTaskNames = map[string][]string{
	"pm": {"Requirements Analysis", "Stakeholder Communication", "Project Planning", "Risk Assessment"},
	"ba": {"Business Process Analysis", "Requirements Documentation", "Gap Analysis"},
	"sa": {"Architecture Design", "Technology Selection", "Integration Planning"},
	"qa": {"Test Planning", "Test Execution", "Defect Triage"},
	"researcher": {"Background Research", "Source Evaluation", "Findings Summary"},
	"analyst":    {"Data Analysis", "Insight Synthesis"},
}

var defaultRoleTasks = []string{"Task Execution", "Status Reporting"}

func canonicalTasksForRole(role string) []string {
	if tasks, ok := roleTaskNames[normalizeRoleKey(role)]; ok {
		return tasks
	}
	return defaultRoleTasks
}

// normalizeRoleKey mirrors workflow's role normalization without an
// exported dependency on its internals.
func normalizeRoleKey(role string) string {
	switch role {
	case "pm", "project_manager", "PM":
		return "pm"
	case "ba", "business_analyst", "BA":
		return "ba"
	case "sa", "solution_architect", "SA":
		return "sa"
	case "qa", "quality_assurance", "QA":
		return "qa"
	case "researcher", "research":
		return "researcher"
	case "analyst":
		return "analyst"
	default:
		return role
	}
}

// DefaultTimelineBufferPercent is the default slack added to the sum of
// critical-path durations, per spec.md §4.7.1.
const DefaultTimelineBufferPercent = 0.20

// CriticalPathTopN bounds how many of the longest tasks are marked
// critical-path.
const CriticalPathTopN = 3

// Generate expands plan into a detailed ExecutionPlan, per spec.md
// §4.7.1. level is the requested approval level (carried through to
// ExecutionPlan.ValidationLevel; CreateApprovalWorkflow takes its level
// as a separate argument).
func Generate(plan *workflow.WorkflowPlan, level string) (*ExecutionPlan, error) {
	if plan == nil {
		return nil, fmt.Errorf("planner: generate: plan is nil")
	}

	tasks, order := buildTaskBreakdown(plan)
	critical := criticalPathTasks(tasks, order)
	groups := parallelGroups(tasks, order)
	peak := peakResourceUsage(plan)
	cost := costBreakdown(plan)
	risks := assessRisks(plan, tasks)

	complexity := classifyComplexity(len(plan.Assignments), len(plan.Dependencies), len(plan.Resources))
	mitigations := mitigationsFor(risks, complexity)
	checkpoints := qualityCheckpoints(plan)

	totalCritical := sumDurations(tasks, critical)
	buffer := time.Duration(float64(totalCritical) * DefaultTimelineBufferPercent)
	now := planStartTime()

	ep := &ExecutionPlan{
		ID:                 uuid.New().String(),
		PlanID:             plan.ID,
		Complexity:         complexity,
		ValidationLevel:    level,
		Tasks:              tasks,
		CriticalPath:       critical,
		ParallelGroups:     groups,
		PeakResourceUsage:  peak,
		CostBreakdown:      cost,
		Risks:              risks,
		Mitigations:        mitigations,
		QualityCheckpoints: checkpoints,
		EarliestStart:      now,
		LatestFinish:       now.Add(totalCritical + buffer),
		BufferMinutes:      int(buffer.Minutes()),
	}
	return ep, nil
}

// planStartTime is a seam so tests can be deterministic without touching
// the banned time.Now() in workflow scripts; production callers get the
// real current time.
var planStartTime = time.Now

func buildTaskBreakdown(plan *workflow.WorkflowPlan) (map[string]TaskDetail, []string) {
	tasks := make(map[string]TaskDetail)
	var order []string

	roleToAssignment := make(map[string]workflow.AgentAssignment, len(plan.Assignments))
	for _, a := range plan.Assignments {
		roleToAssignment[a.Role] = a
	}

	for _, a := range plan.Assignments {
		names := canonicalTasksForRole(a.Role)
		perTask := a.Duration
		if n := len(names); n > 0 {
			perTask = a.Duration / time.Duration(n)
		}
		var prevID string
		for i, name := range names {
			id := fmt.Sprintf("%s:%s", a.Role, name)
			deps := []string{}
			if prevID != "" {
				deps = append(deps, prevID)
			}
			// An assignment whose role depends on another role (per the
			// plan's TaskDependency list) has its first task depend on
			// that role's last task, carrying the role-level dependency
			// down into the task breakdown.
			if i == 0 {
				for _, d := range plan.Dependencies {
					if d.Dependent == a.Role {
						if prereqNames := canonicalTasksForRole(d.Prerequisite); len(prereqNames) > 0 {
							deps = append(deps, fmt.Sprintf("%s:%s", d.Prerequisite, prereqNames[len(prereqNames)-1]))
						}
					}
				}
			}
			tasks[id] = TaskDetail{
				ID:                id,
				Name:              name,
				Role:              a.Role,
				EstimatedDuration: perTask,
				Deliverables:      []string{name + " deliverable"},
				SuccessCriteria:   []string{name + " reviewed and accepted"},
				Dependencies:      deps,
			}
			order = append(order, id)
			prevID = id
		}
	}
	sort.Strings(order)
	return tasks, order
}

// criticalPathTasks returns the CriticalPathTopN longest-duration tasks,
// by id for determinism on ties.
func criticalPathTasks(tasks map[string]TaskDetail, order []string) []string {
	sorted := make([]string, len(order))
	copy(sorted, order)
	sort.SliceStable(sorted, func(i, j int) bool {
		di, dj := tasks[sorted[i]].EstimatedDuration, tasks[sorted[j]].EstimatedDuration
		if di != dj {
			return di > dj
		}
		return sorted[i] < sorted[j]
	})
	n := CriticalPathTopN
	if n > len(sorted) {
		n = len(sorted)
	}
	out := append([]string(nil), sorted[:n]...)
	sort.Strings(out)
	return out
}

// parallelGroups clusters tasks sharing a role into groups of size > 1,
// per spec.md §4.7.1 ("groups of size > 1").
func parallelGroups(tasks map[string]TaskDetail, order []string) [][]string {
	byRole := make(map[string][]string)
	for _, id := range order {
		r := tasks[id].Role
		byRole[r] = append(byRole[r], id)
	}
	var groups [][]string
	roles := make([]string, 0, len(byRole))
	for r := range byRole {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	for _, r := range roles {
		if len(byRole[r]) > 1 {
			groups = append(groups, byRole[r])
		}
	}
	return groups
}

func peakResourceUsage(plan *workflow.WorkflowPlan) map[string]float64 {
	peak := make(map[string]float64)
	for _, r := range plan.Resources {
		peak[r.Type] += r.Amount
	}
	return peak
}

func costBreakdown(plan *workflow.WorkflowPlan) map[string]float64 {
	cost := make(map[string]float64)
	for _, r := range plan.Resources {
		cost[r.Type] += r.CostEstimate
	}
	return cost
}

// assessRisks emits a risk per category that plausibly applies, per
// spec.md §4.7.1 ("risk assessment ... for resource/agent-coordination/
// timeline").
func assessRisks(plan *workflow.WorkflowPlan, tasks map[string]TaskDetail) []Risk {
	var risks []Risk

	if critical := 0.0; true {
		for _, r := range plan.Resources {
			if r.Critical {
				critical++
			}
		}
		if critical > 0 {
			risks = append(risks, Risk{
				Category:    RiskResource,
				Description: "one or more critical resources are required with no slack",
				Probability: clamp01(0.2 + 0.1*critical),
				Impact:      0.7,
			})
		}
	}

	if len(plan.Assignments) >= 3 {
		risks = append(risks, Risk{
			Category:    RiskAgentCoordination,
			Description: "coordination overhead grows with the number of distinct agent roles",
			Probability: clamp01(0.15 + 0.05*float64(len(plan.Assignments))),
			Impact:      0.5,
		})
	}

	var total time.Duration
	for _, t := range tasks {
		total += t.EstimatedDuration
	}
	if total > 8*time.Hour {
		risks = append(risks, Risk{
			Category:    RiskTimeline,
			Description: "aggregate task duration exceeds a single working day",
			Probability: 0.3,
			Impact:      0.6,
		})
	}

	return risks
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// mitigationsFor attaches a mitigation per risk, and a contingency too
// when the plan's complexity is complex or higher, per spec.md §4.7.1.
func mitigationsFor(risks []Risk, complexity PlanComplexity) []Mitigation {
	complex := complexity == PlanComplex || complexity == PlanEnterprise
	out := make([]Mitigation, 0, len(risks))
	for _, r := range risks {
		m := Mitigation{Category: r.Category}
		switch r.Category {
		case RiskResource:
			m.Description = "reserve critical resources ahead of dispatch; monitor headroom"
			if complex {
				m.Contingency = "fail over to an alternate resource pool or defer non-critical tasks"
			}
		case RiskAgentCoordination:
			m.Description = "add explicit handoff checkpoints between dependent roles"
			if complex {
				m.Contingency = "escalate to a human coordinator if handoffs stall past the buffer window"
			}
		case RiskTimeline:
			m.Description = "front-load the critical path and monitor buffer consumption"
			if complex {
				m.Contingency = "re-plan remaining tasks with a reduced scope if the buffer is exhausted"
			}
		}
		out = append(out, m)
	}
	return out
}

// qualityCheckpoints attaches a checkpoint after each role's work for
// sequential/hierarchical patterns (each handoff is reviewed before the
// next role starts), and a single end-of-plan checkpoint for
// parallel/dynamic patterns (reviewed once work converges).
func qualityCheckpoints(plan *workflow.WorkflowPlan) []QualityCheckpoint {
	switch plan.Pattern {
	case workflow.PatternSequential, workflow.PatternHierarchical:
		checkpoints := make([]QualityCheckpoint, 0, len(plan.Assignments))
		for _, a := range plan.Assignments {
			checkpoints = append(checkpoints, QualityCheckpoint{
				AfterRole: a.Role,
				Criteria:  []string{"deliverables complete", "success criteria met"},
			})
		}
		return checkpoints
	default:
		if len(plan.Assignments) == 0 {
			return nil
		}
		return []QualityCheckpoint{{
			AfterRole: plan.Assignments[len(plan.Assignments)-1].Role,
			Criteria:  []string{"all parallel outputs reconciled"},
		}}
	}
}

func sumDurations(tasks map[string]TaskDetail, ids []string) time.Duration {
	var total time.Duration
	for _, id := range ids {
		total += tasks[id].EstimatedDuration
	}
	return total
}
