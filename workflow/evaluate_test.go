// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"testing"
	"time"
)

func projectCreationTemplate() *WorkflowTemplate {
	return &WorkflowTemplate{
		ID:               "project_creation",
		Name:             "Project Creation",
		Category:         "engineering",
		Pattern:          PatternSequential,
		RequiredRoles:    []string{"pm", "ba", "sa"},
		DurationEstimate: 960 * time.Minute,
		SupportedComplexities: []Complexity{ComplexityHigh, ComplexityMedium},
		IntentKeywords:   []string{"create", "project", "build"},
		EntityRequirements: map[string]bool{
			"languages":  true,
			"frameworks": true,
		},
	}
}

func newTestEngine(templates ...*WorkflowTemplate) *Engine {
	reg := NewRegistry()
	for _, t := range templates {
		reg.AddTemplate(t)
	}
	return NewEngine(reg)
}

func TestEvaluateScenarioMatchesProjectCreation(t *testing.T) {
	engine := newTestEngine(projectCreationTemplate())
	req := Request{
		ID:         "req-1",
		Intent:     "create_project",
		Confidence: 0.9,
		Entities: map[string]any{
			"languages":  []string{"python"},
			"frameworks": []string{"django"},
		},
		Complexity: ComplexityHigh,
	}

	matches := engine.Evaluate(req)
	if len(matches) != 1 {
		t.Fatalf("len(matches) = %d, want 1", len(matches))
	}
	m := matches[0]
	if m.Template.ID != "project_creation" {
		t.Errorf("Template.ID = %q, want project_creation", m.Template.ID)
	}
	if m.Relevance <= 0 {
		t.Errorf("Relevance = %v, want > 0", m.Relevance)
	}

	plan, err := Select(Rank(matches), req.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Pattern != PatternSequential {
		t.Errorf("Pattern = %v, want sequential", plan.Pattern)
	}
	if len(plan.Assignments) != 3 {
		t.Fatalf("len(Assignments) = %d, want 3", len(plan.Assignments))
	}
	var total time.Duration
	for _, a := range plan.Assignments {
		total += a.Duration
	}
	if total != 960*time.Minute {
		t.Errorf("total assignment duration = %v, want 960m", total)
	}
}

func TestEvaluateSkipsIncompatibleComplexity(t *testing.T) {
	tmpl := projectCreationTemplate()
	tmpl.SupportedComplexities = []Complexity{ComplexityLow}
	engine := newTestEngine(tmpl)

	matches := engine.Evaluate(Request{Intent: "create_project", Complexity: ComplexityHigh})
	if len(matches) != 0 {
		t.Fatalf("len(matches) = %d, want 0 (complexity incompatible)", len(matches))
	}
}

func TestEvaluateSkipsBelowRelevanceThreshold(t *testing.T) {
	tmpl := projectCreationTemplate()
	engine := newTestEngine(tmpl)

	matches := engine.Evaluate(Request{Intent: "totally_unrelated", Complexity: ComplexityHigh})
	if len(matches) != 0 {
		t.Fatalf("len(matches) = %d, want 0 (relevance below 0.1)", len(matches))
	}
}

func TestEvaluateContextBoostsRaiseRelevance(t *testing.T) {
	tmpl := projectCreationTemplate()
	engine := newTestEngine(tmpl)
	base := Request{Intent: "create_project", Complexity: ComplexityHigh}

	baseMatches := engine.Evaluate(base)
	if len(baseMatches) != 1 {
		t.Fatalf("setup: expected one base match")
	}

	boosted := base
	boosted.Context = &ConversationContext{
		Preferences: UserPreferences{
			PreferredPatterns: []Pattern{PatternSequential},
		},
	}
	// A fresh engine: the evaluation cache key leaves out Context, so the
	// first engine would return its cached base result here.
	boostedMatches := newTestEngine(tmpl).Evaluate(boosted)
	if len(boostedMatches) != 1 {
		t.Fatalf("expected one boosted match")
	}
	if boostedMatches[0].Relevance <= baseMatches[0].Relevance {
		t.Errorf("boosted relevance %v should exceed base relevance %v", boostedMatches[0].Relevance, baseMatches[0].Relevance)
	}
}

func TestEvaluateCachesByFingerprint(t *testing.T) {
	engine := newTestEngine(projectCreationTemplate())
	req := Request{Intent: "create_project", Complexity: ComplexityHigh, Entities: map[string]any{"languages": []string{"go"}, "frameworks": []string{"gin"}}}

	_ = engine.Evaluate(req)
	_ = engine.Evaluate(req)

	metrics := engine.GetMetrics()
	if metrics.TotalEvaluations != 2 {
		t.Fatalf("TotalEvaluations = %d, want 2", metrics.TotalEvaluations)
	}
	if metrics.CacheHitRate <= 0 {
		t.Errorf("CacheHitRate = %v, want > 0 after a repeated request", metrics.CacheHitRate)
	}
}

func TestEvaluateCacheInvalidatedByTemplateMutation(t *testing.T) {
	engine := newTestEngine(projectCreationTemplate())
	req := Request{Intent: "create_project", Complexity: ComplexityHigh, Entities: map[string]any{"languages": []string{"go"}, "frameworks": []string{"gin"}}}

	_ = engine.Evaluate(req)
	engine.AddTemplate(&WorkflowTemplate{
		ID: "another", Pattern: PatternParallel, RequiredRoles: []string{"pm", "researcher"},
		SupportedComplexities: []Complexity{ComplexityHigh},
		IntentKeywords:        []string{"create", "project"},
	})

	matches := engine.Evaluate(req)
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2 after adding a second compatible template", len(matches))
	}
}
