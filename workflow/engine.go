// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"time"

	"github.com/axonkernel/orchestrator/kernelerr"
)

var errTemplateNotFound = kernelerr.New(kernelerr.KindNotFound, "workflow", "template not found")

// Engine is the C6 facade: evaluate/rank/select/validate_prerequisites
// plus registry management and telemetry, per spec.md §4.6.
type Engine struct {
	registry *Registry
	cache    *evaluationCache
	metrics  engineMetrics

	prereqChecker   PrerequisiteChecker
	agentChecker    AgentAvailabilityChecker
	resourceChecker ResourceAvailabilityChecker
}

// DefaultEvaluationCacheTTL is the bounded TTL applied to evaluate()'s
// memoized results when the caller does not override it, per spec.md §9's
// open question ("specify an explicit TTL rather than silently evicting
// on size").
const DefaultEvaluationCacheTTL = 5 * time.Minute

// EngineOption configures an Engine at construction.
type EngineOption func(*Engine)

func WithEvaluationCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) { e.cache.ttl = ttl }
}

func WithPrerequisiteChecker(c PrerequisiteChecker) EngineOption {
	return func(e *Engine) { e.prereqChecker = c }
}

func WithAgentAvailabilityChecker(c AgentAvailabilityChecker) EngineOption {
	return func(e *Engine) { e.agentChecker = c }
}

func WithResourceAvailabilityChecker(c ResourceAvailabilityChecker) EngineOption {
	return func(e *Engine) { e.resourceChecker = c }
}

// NewEngine wires an Engine around registry.
func NewEngine(registry *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		prereqChecker: StubPrerequisiteChecker{Known: map[string]bool{}},
	}
	e.cache = newEvaluationCache(registry, DefaultEvaluationCacheTTL)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddTemplate registers a template and invalidates the evaluation cache
// (via the registry's version counter, checked lazily on next access).
func (e *Engine) AddTemplate(t *WorkflowTemplate) { e.registry.AddTemplate(t) }

// RemoveTemplate deregisters a template by id.
func (e *Engine) RemoveTemplate(id string) bool { return e.registry.RemoveTemplate(id) }

// ListTemplates returns every registered template in insertion order.
func (e *Engine) ListTemplates() []*WorkflowTemplate { return e.registry.ListTemplates() }

// GetMetrics returns the engine's current telemetry snapshot.
func (e *Engine) GetMetrics() Metrics { return e.metrics.snapshot(e.cache) }

// Plan runs the full evaluate -> rank -> select pipeline for request,
// a convenience composition of the three public operations.
func (e *Engine) Plan(request Request) (*WorkflowPlan, error) {
	matches := e.Evaluate(request)
	ranked := Rank(matches)
	return Select(ranked, request.ID)
}

// ValidatePrerequisites checks plan against its originating template
// using the engine's configured checkers.
func (e *Engine) ValidatePrerequisites(plan *WorkflowPlan) (ValidationResult, error) {
	template, ok := e.registry.Get(plan.TemplateID)
	if !ok {
		return ValidationResult{}, errTemplateNotFound
	}
	return ValidatePrerequisites(plan, template, e.prereqChecker, e.agentChecker, e.resourceChecker), nil
}
