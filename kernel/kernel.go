// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/llm"
	"github.com/axonkernel/orchestrator/modelregistry"
	"github.com/axonkernel/orchestrator/planner"
	"github.com/axonkernel/orchestrator/ratelimit"
	"github.com/axonkernel/orchestrator/shared/logger"
	"github.com/axonkernel/orchestrator/workerpool"
	"github.com/axonkernel/orchestrator/workflow"
)

// Kernel wires C1 (Audit), C2 (Model Registry), C3 (Rate Limiter), C4
// (Model Router), C5 (Worker Pool), C6 (Workflow Engine), and C7
// (Execution Planner) into one process, the way the teacher's run.go
// wires AuditLogger/LLMRouter/WorkflowEngine/PlanningEngine behind a
// single initializeComponents call. Unlike run.go, Kernel holds its
// dependencies as fields rather than package-level globals, so more than
// one Kernel can exist in a process (e.g. one per test).
type Kernel struct {
	Audit         audit.Store
	Models        *modelregistry.Service
	Limiter       ratelimit.Limiter
	Router        *llm.Router
	Pool          *workerpool.Pool
	Workflow      *workflow.Engine
	Planner       *planner.Planner
	Conversations *ConversationStore

	cfg Config
	log *logger.Logger
}

// Option customizes New's wiring. Most callers only need to supply a
// Launcher and a Provider; everything else falls back to an in-memory
// implementation suitable for tests and single-instance deployments.
type Option func(*buildState)

type buildState struct {
	catalog    *modelregistry.Catalog
	repository modelregistry.Repository
	auditStore audit.Store
	stateStore workerpool.StateStore
	limiter    ratelimit.Limiter
	templates  []*workflow.WorkflowTemplate
}

func WithCatalog(c *modelregistry.Catalog) Option {
	return func(b *buildState) { b.catalog = c }
}

func WithRepository(r modelregistry.Repository) Option {
	return func(b *buildState) { b.repository = r }
}

func WithAuditStore(s audit.Store) Option {
	return func(b *buildState) { b.auditStore = s }
}

func WithStateStore(s workerpool.StateStore) Option {
	return func(b *buildState) { b.stateStore = s }
}

func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(b *buildState) { b.limiter = l }
}

// WithTemplates seeds the workflow registry with t at construction.
func WithTemplates(t ...*workflow.WorkflowTemplate) Option {
	return func(b *buildState) { b.templates = append(b.templates, t...) }
}

// New wires a Kernel around cfg. launcher spawns worker subprocesses
// (C5's collaborator, out of this kernel's scope per spec.md §1) and
// provider issues the actual model calls (C4's collaborator, likewise
// out of scope) — both are mandatory since nothing in C1-C7 can stand in
// for them.
func New(cfg Config, launcher workerpool.Launcher, provider llm.Provider, opts ...Option) (*Kernel, error) {
	if launcher == nil {
		return nil, fmt.Errorf("kernel: a worker launcher is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("kernel: a model provider is required")
	}

	b := &buildState{}
	for _, opt := range opts {
		opt(b)
	}
	if b.catalog == nil {
		b.catalog = modelregistry.NewCatalog()
	}
	if b.repository == nil {
		b.repository = modelregistry.NewMemoryRepository()
	}
	if b.auditStore == nil {
		b.auditStore = audit.NewMemoryStore()
	}
	if b.stateStore == nil {
		b.stateStore = workerpool.NewMemoryStateStore()
	}
	if b.limiter == nil {
		b.limiter = ratelimit.NewMemoryLimiter(b.auditStore)
	}

	log := logger.New("kernel")

	models := modelregistry.NewService(b.catalog, b.repository)
	log.Info("", "", "model registry initialized", nil)

	router := llm.NewRouter(models, b.limiter, provider, b.auditStore,
		llm.WithQualityThreshold(cfg.QualityThreshold),
		llm.WithScoreWindow(cfg.EvaluationWindow),
	)
	log.Info("", "", "model router initialized", map[string]any{"quality_threshold": cfg.QualityThreshold})

	poolConfig := workerpool.Config{
		MaxConcurrent: cfg.MaxConcurrentProcesses,
		TaskTimeout:   secondsToDuration(cfg.TaskTimeoutSeconds),
		Heartbeat: workerpool.HeartbeatConfig{
			Enabled:   cfg.Heartbeat.Enabled,
			Interval:  secondsToDuration(cfg.Heartbeat.IntervalSeconds),
			MaxMissed: cfg.Heartbeat.MaxMissed,
		},
	}
	pool := workerpool.NewPool(launcher, poolConfig, b.stateStore, b.auditStore, log)
	log.Info("", "", "worker pool initialized", map[string]any{"max_concurrent": cfg.MaxConcurrentProcesses})

	registry := workflow.NewRegistry()
	for _, t := range b.templates {
		registry.AddTemplate(t)
	}
	engine := workflow.NewEngine(registry,
		workflow.WithEvaluationCacheTTL(secondsToDuration(cfg.ResponseCache.TTLSeconds)),
		workflow.WithAgentAvailabilityChecker(workflow.PoolAgentChecker{Pool: pool, MaxConcurrent: cfg.MaxConcurrentProcesses}),
		workflow.WithResourceAvailabilityChecker(workflow.BudgetResourceChecker{Registry: models, DailyBudget: cfg.DailyBudgetUSD}),
	)
	log.Info("", "", "workflow engine initialized", map[string]any{"templates": len(b.templates)})

	executor := planner.NewExecutor(pool, router, b.auditStore, log)
	planEngine := planner.NewPlanner(executor)
	log.Info("", "", "execution planner initialized", nil)

	conversations := NewConversationStore(cfg.MaxConversations, cfg.ConversationTTL)

	return &Kernel{
		Audit:         b.auditStore,
		Models:        models,
		Limiter:       b.limiter,
		Router:        router,
		Pool:          pool,
		Workflow:      engine,
		Planner:       planEngine,
		Conversations: conversations,
		cfg:           cfg,
		log:           log,
	}, nil
}

// PlanRequest runs the C6->C7 pipeline end to end for req: match and
// select a template (Workflow.Plan), check prerequisites
// (ValidatePrerequisites), then generate and validate a detailed
// ExecutionPlan (Planner.Generate/Validate). It is the kernel's single
// entry point for "turn a parsed request into a reviewable plan",
// mirroring how the teacher's processRequestHandler chains policy
// evaluation, routing, and response processing behind one HTTP handler.
func (k *Kernel) PlanRequest(req workflow.Request) (*planner.ExecutionPlan, []string, error) {
	plan, err := k.Workflow.Plan(req)
	if err != nil {
		return nil, nil, fmt.Errorf("kernel: match request to template: %w", err)
	}

	validation, err := k.Workflow.ValidatePrerequisites(plan)
	if err != nil {
		return nil, nil, fmt.Errorf("kernel: validate prerequisites: %w", err)
	}
	if !validation.OK {
		return nil, validation.Warnings, fmt.Errorf("kernel: plan is missing prerequisites: %v", validation.MissingPrereqs)
	}

	execPlan, err := k.Planner.Generate(plan, string(req.Complexity))
	if err != nil {
		return nil, nil, fmt.Errorf("kernel: generate execution plan: %w", err)
	}

	warnings, err := k.Planner.Validate(execPlan.ID, plan)
	if err != nil {
		return nil, nil, fmt.Errorf("kernel: validate execution plan: %w", err)
	}

	return execPlan, append(validation.Warnings, warnings...), nil
}

// Shutdown drains the worker pool and releases the audit store.
func (k *Kernel) Shutdown(ctx context.Context) error {
	if err := k.Pool.Shutdown(ctx); err != nil {
		return fmt.Errorf("kernel: shutdown worker pool: %w", err)
	}
	return k.Audit.Close()
}

func secondsToDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
