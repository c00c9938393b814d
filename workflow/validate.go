// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

// PrerequisiteChecker answers whether a named template-level prerequisite
// (e.g. "docker", "kubernetes_cluster") is currently satisfied. Concrete
// checks (file existence, service health, license entitlement) live
// outside this package; ValidatePrerequisites only orchestrates the call.
type PrerequisiteChecker interface {
	Check(name string) bool
}

// StubPrerequisiteChecker is the spec's "stub returns true for known
// names" default: anything in Known is satisfied, everything else is not.
type StubPrerequisiteChecker struct {
	Known map[string]bool
}

func (s StubPrerequisiteChecker) Check(name string) bool {
	return s.Known[name]
}

// AgentAvailabilityChecker answers whether at least one worker of role is
// available (idle or spawnable), consulting the worker pool (C5).
type AgentAvailabilityChecker interface {
	AgentAvailable(role string) (bool, error)
}

// ResourceAvailabilityChecker answers whether amount of a resource type is
// available, consulting the model registry / cost store (C2) — e.g.
// whether the daily budget has headroom for the plan's estimated cost.
type ResourceAvailabilityChecker interface {
	ResourceAvailable(resourceType string, amount float64) (bool, error)
}

// patternSetupSurcharge accounts for the extra coordination overhead of
// non-linear patterns: parallel fan-out needs more upfront scheduling than
// a simple chain, and hierarchical/dynamic patterns need the most since
// they establish a delegation tree or a staged handoff.
var patternSetupSurcharge = map[Pattern]int{
	PatternSequential:   0,
	PatternParallel:     10,
	PatternHierarchical: 20,
	PatternDynamic:      15,
}

// ValidatePrerequisites checks plan's template-level prerequisites,
// per-agent availability for every assignment's role, and per-resource
// availability for every resource requirement, per spec.md §4.6.
func ValidatePrerequisites(
	plan *WorkflowPlan,
	template *WorkflowTemplate,
	prereqChecker PrerequisiteChecker,
	agentChecker AgentAvailabilityChecker,
	resourceChecker ResourceAvailabilityChecker,
) ValidationResult {
	result := ValidationResult{OK: true}

	for _, prereq := range template.Prerequisites {
		if prereqChecker == nil || !prereqChecker.Check(prereq) {
			result.MissingPrereqs = append(result.MissingPrereqs, prereq)
		}
	}

	for _, a := range plan.Assignments {
		if agentChecker == nil {
			continue
		}
		available, err := agentChecker.AgentAvailable(a.Role)
		if err != nil {
			result.Warnings = append(result.Warnings, "agent availability check failed for "+a.Role+": "+err.Error())
			continue
		}
		if !available {
			result.Warnings = append(result.Warnings, "no available agent for role "+a.Role)
		}
	}

	for _, r := range plan.Resources {
		if resourceChecker == nil {
			continue
		}
		available, err := resourceChecker.ResourceAvailable(r.Type, r.Amount)
		if err != nil {
			result.Warnings = append(result.Warnings, "resource availability check failed for "+r.Type+": "+err.Error())
			continue
		}
		if !available {
			result.Warnings = append(result.Warnings, "insufficient "+r.Type+" resource availability")
		}
	}

	result.OK = len(result.MissingPrereqs) == 0 && len(result.Warnings) == 0
	result.EstimatedSetupSecs = estimateSetupSeconds(plan, template, len(result.MissingPrereqs))
	return result
}

func estimateSetupSeconds(plan *WorkflowPlan, template *WorkflowTemplate, missingPrereqs int) int {
	seconds := 15 + 30*missingPrereqs + patternSetupSurcharge[template.Pattern]
	if agents := len(plan.Assignments); agents > 3 {
		seconds += 10 * (agents - 3)
	}
	return seconds
}
