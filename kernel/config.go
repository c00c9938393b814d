// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package kernel wires components C1 through C7 into a single
// orchestration kernel: it is the glue layer spec.md describes but does
// not itself define the behavior of, in the same sense that the
// teacher's orchestrator/run.go wires AuditLogger, LLMRouter,
// WorkflowEngine, and PlanningEngine together behind one process.
package kernel

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/shared/logger"
)

// HeartbeatConfig mirrors the worker pool's heartbeat knobs at the
// configuration boundary (spec.md §6).
type HeartbeatConfig struct {
	IntervalSeconds int
	TimeoutSeconds  int
	MaxMissed       int
	Enabled         bool
}

// ResponseCacheConfig bounds C4's response cache.
type ResponseCacheConfig struct {
	TTLSeconds int
	MaxEntries int
}

// AuditConfig bounds C1's retention policy and, when DSN is set, names the
// durable backing store (postgres by default, mysql as the alternate) that
// OpenAuditStore dials. New does not read it; without WithAuditStore, New
// uses an in-memory Store.
type AuditConfig struct {
	RetentionDays  int
	StoragePath    string
	RepositoryKind audit.RepositoryKind
	DSN            string
}

// OpenAuditStore dials the durable audit store named by cfg, if any DSN is
// configured. Callers wanting a durable store wire its result in with
// kernel.WithAuditStore; New itself never dials a database on its own.
func OpenAuditStore(ctx context.Context, cfg AuditConfig, log *logger.Logger) (audit.Store, error) {
	if cfg.DSN == "" {
		return nil, nil
	}
	return audit.Open(ctx, cfg.RepositoryKind, cfg.DSN, log)
}

// Config collects every recognized option from spec.md §6, independent
// of source-language naming. Zero-valued fields are filled in by
// DefaultConfig, not by the kernel itself, so a caller can start from
// DefaultConfig() and override only what it cares about.
type Config struct {
	MaxConcurrentProcesses int
	Heartbeat              HeartbeatConfig
	TaskTimeoutSeconds      int
	RateLimitThresholdPercent float64
	ResponseCache           ResponseCacheConfig
	QualityThreshold        float64
	EvaluationWindow        int
	DailyBudgetUSD          float64
	Audit                   AuditConfig
	MinConfidenceThreshold  float64
	MaxClarificationAttempts int
	DefaultBufferPercentage float64
	DefaultApprovalTimeoutHours int

	// MaxConversations and ConversationTTL bound the ConversationContext
	// LRU-with-TTL eviction policy of spec.md §3; not named in spec.md §6
	// but owned by the same configuration surface since nothing else in
	// C1-C7 holds ConversationContext state.
	MaxConversations int
	ConversationTTL  time.Duration
}

// DefaultConfig returns the configuration spec.md §6 states as defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentProcesses: 50,
		Heartbeat: HeartbeatConfig{
			IntervalSeconds: 30,
			TimeoutSeconds:  60,
			MaxMissed:       3,
			Enabled:         true,
		},
		TaskTimeoutSeconds:        300,
		RateLimitThresholdPercent: 90.0,
		ResponseCache: ResponseCacheConfig{
			TTLSeconds: 300,
			MaxEntries: 1000,
		},
		QualityThreshold:            0.7,
		EvaluationWindow:            10,
		DailyBudgetUSD:              0, // 0 means no daily cap enforced
		Audit: AuditConfig{
			RetentionDays: 365,
			StoragePath:   "",
		},
		MinConfidenceThreshold:      0.5,
		MaxClarificationAttempts:    3,
		DefaultBufferPercentage:     0.20,
		DefaultApprovalTimeoutHours: 24,
		MaxConversations:            10000,
		ConversationTTL:             30 * time.Minute,
	}
}

// LoadConfigFromEnv starts from DefaultConfig and overrides fields whose
// environment variable is set, logging what it finds the way the
// teacher's LoadLLMConfig reports which providers it discovered.
func LoadConfigFromEnv() Config {
	cfg := DefaultConfig()

	if v := envInt("AXONKERNEL_MAX_CONCURRENT_PROCESSES"); v > 0 {
		cfg.MaxConcurrentProcesses = v
	}
	if v := envInt("AXONKERNEL_HEARTBEAT_INTERVAL_SECONDS"); v > 0 {
		cfg.Heartbeat.IntervalSeconds = v
	}
	if v := envInt("AXONKERNEL_HEARTBEAT_TIMEOUT_SECONDS"); v > 0 {
		cfg.Heartbeat.TimeoutSeconds = v
	}
	if v := envInt("AXONKERNEL_HEARTBEAT_MAX_MISSED"); v > 0 {
		cfg.Heartbeat.MaxMissed = v
	}
	if v := os.Getenv("AXONKERNEL_HEARTBEAT_ENABLED"); v != "" {
		cfg.Heartbeat.Enabled = v == "true"
	}
	if v := envInt("AXONKERNEL_TASK_TIMEOUT_SECONDS"); v > 0 {
		cfg.TaskTimeoutSeconds = v
	}
	if v := envFloat("AXONKERNEL_RATE_LIMIT_THRESHOLD_PERCENT"); v > 0 {
		cfg.RateLimitThresholdPercent = v
	}
	if v := envInt("AXONKERNEL_RESPONSE_CACHE_TTL_SECONDS"); v > 0 {
		cfg.ResponseCache.TTLSeconds = v
	}
	if v := envInt("AXONKERNEL_RESPONSE_CACHE_MAX_ENTRIES"); v > 0 {
		cfg.ResponseCache.MaxEntries = v
	}
	if v := envFloat("AXONKERNEL_QUALITY_THRESHOLD"); v > 0 {
		cfg.QualityThreshold = v
	}
	if v := envInt("AXONKERNEL_EVALUATION_WINDOW"); v > 0 {
		cfg.EvaluationWindow = v
	}
	if v := envFloat("AXONKERNEL_DAILY_BUDGET_USD"); v > 0 {
		cfg.DailyBudgetUSD = v
	}
	if v := envInt("AXONKERNEL_AUDIT_RETENTION_DAYS"); v > 0 {
		cfg.Audit.RetentionDays = v
	}
	if v := os.Getenv("AXONKERNEL_AUDIT_STORAGE_PATH"); v != "" {
		cfg.Audit.StoragePath = v
	}
	if v := os.Getenv("AXONKERNEL_AUDIT_REPOSITORY_KIND"); v != "" {
		cfg.Audit.RepositoryKind = audit.RepositoryKind(v)
	}
	if v := os.Getenv("AXONKERNEL_AUDIT_DSN"); v != "" {
		cfg.Audit.DSN = v
	}
	if v := envFloat("AXONKERNEL_MIN_CONFIDENCE_THRESHOLD"); v > 0 {
		cfg.MinConfidenceThreshold = v
	}
	if v := envInt("AXONKERNEL_MAX_CLARIFICATION_ATTEMPTS"); v > 0 {
		cfg.MaxClarificationAttempts = v
	}
	if v := envFloat("AXONKERNEL_DEFAULT_BUFFER_PERCENTAGE"); v > 0 {
		cfg.DefaultBufferPercentage = v
	}
	if v := envInt("AXONKERNEL_DEFAULT_APPROVAL_TIMEOUT_HOURS"); v > 0 {
		cfg.DefaultApprovalTimeoutHours = v
	}

	log.Printf("[kernel config] max_concurrent_processes=%d task_timeout_seconds=%d quality_threshold=%.2f daily_budget_usd=%.2f",
		cfg.MaxConcurrentProcesses, cfg.TaskTimeoutSeconds, cfg.QualityThreshold, cfg.DailyBudgetUSD)

	return cfg
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

func envFloat(key string) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil {
		return 0
	}
	return v
}
