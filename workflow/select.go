// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var errNoMatches = errors.New("workflow: no matches to select from")

// Select picks the top-ranked match and expands its template into a
// WorkflowPlan. matches must already be ranked (Rank's output); Select
// does not re-sort.
func Select(matches []Match, sourceRequestID string) (*WorkflowPlan, error) {
	if len(matches) == 0 {
		return nil, errNoMatches
	}
	best := matches[0]
	t := best.Template

	assignments := make([]AgentAssignment, 0, len(t.RequiredRoles))
	perRoleDuration := t.DurationEstimate
	if n := len(t.RequiredRoles); n > 0 {
		perRoleDuration = t.DurationEstimate / time.Duration(n)
	}
	for _, role := range t.RequiredRoles {
		assignments = append(assignments, AgentAssignment{
			Role:      role,
			Priority:  assignmentPriority(role),
			Duration:  perRoleDuration,
			ModelTier: defaultTierForRole(role),
		})
	}

	plan := &WorkflowPlan{
		ID:            uuid.New().String(),
		Pattern:       t.Pattern,
		Assignments:   assignments,
		Dependencies:  buildDependencies(t.Pattern, t.RequiredRoles),
		Priority:      1,
		TemplateID:    t.ID,
		SourceRequest: sourceRequestID,
	}
	return plan, nil
}

// buildDependencies emits TaskDependency edges for roles according to
// pattern, per spec.md §4.6 select().
func buildDependencies(pattern Pattern, roles []string) []TaskDependency {
	switch pattern {
	case PatternSequential:
		return sequentialDeps(roles)
	case PatternParallel:
		return fanOutDeps(roles)
	case PatternHierarchical:
		return treeDeps(roles)
	case PatternDynamic:
		return researchThenAnalysisDeps(roles)
	default:
		return nil
	}
}

// sequentialDeps chains roles in the listed order: each depends on the
// one before it.
func sequentialDeps(roles []string) []TaskDependency {
	var deps []TaskDependency
	for i := 1; i < len(roles); i++ {
		deps = append(deps, TaskDependency{
			Dependent:    roles[i],
			Prerequisite: roles[i-1],
			Kind:         DependencyCompletion,
			Blocking:     true,
		})
	}
	return deps
}

// fanOutDeps makes every role but the first (conventionally PM) depend
// directly on the first, with no dependencies among the fanned-out roles.
func fanOutDeps(roles []string) []TaskDependency {
	if len(roles) < 2 {
		return nil
	}
	root := roles[0]
	var deps []TaskDependency
	for _, r := range roles[1:] {
		deps = append(deps, TaskDependency{
			Dependent:    r,
			Prerequisite: root,
			Kind:         DependencyCompletion,
			Blocking:     true,
		})
	}
	return deps
}

// treeDeps delegates in a binary tree rooted at roles[0]: role i depends
// on role (i-1)/2, the classic heap-index parent relation, giving a
// shallow delegation tree instead of a flat fan-out or a long chain.
func treeDeps(roles []string) []TaskDependency {
	var deps []TaskDependency
	for i := 1; i < len(roles); i++ {
		parent := (i - 1) / 2
		deps = append(deps, TaskDependency{
			Dependent:    roles[i],
			Prerequisite: roles[parent],
			Kind:         DependencyCompletion,
			Blocking:     true,
		})
	}
	return deps
}

// researchThenAnalysisDeps splits roles into a research stage (any role
// whose name contains "research", or roles[0] if none do) and an
// analysis stage (everything else), with the analysis stage depending on
// every research-stage role via a data dependency — the data produced by
// research flows into analysis, rather than merely gating completion.
func researchThenAnalysisDeps(roles []string) []TaskDependency {
	if len(roles) < 2 {
		return nil
	}
	var research, analysis []string
	for _, r := range roles {
		if strings.Contains(strings.ToLower(r), "research") {
			research = append(research, r)
		} else {
			analysis = append(analysis, r)
		}
	}
	if len(research) == 0 {
		research = roles[:1]
		analysis = roles[1:]
	}

	var deps []TaskDependency
	for _, a := range analysis {
		for _, r := range research {
			deps = append(deps, TaskDependency{
				Dependent:    a,
				Prerequisite: r,
				Kind:         DependencyData,
				Blocking:     true,
			})
		}
	}
	return deps
}

// defaultTierForRole maps a role to a default model tier, mirroring the
// teacher's agent_config.go role->tier defaults (strategic roles like PM
// get the more capable tier; execution roles get the operational one).
func defaultTierForRole(role string) string {
	switch normalizeRole(role) {
	case "pm", "project_manager", "sa", "solution_architect":
		return "strategic"
	case "researcher", "research":
		return "research"
	default:
		return "operational"
	}
}
