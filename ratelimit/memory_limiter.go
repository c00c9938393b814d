// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/axonkernel/orchestrator/audit"
)

type windowEntry struct {
	at     time.Time
	tokens int
}

type modelState struct {
	mu       sync.Mutex
	entries  []windowEntry
	limited  bool
	resetAt  time.Time
}

// MemoryLimiter implements Limiter with an in-process FIFO window per
// model, used as the fallback when Redis is unreachable and in tests,
// mirroring the teacher's agent/auth.go in-memory rate-limit map pattern
// generalized to a genuine sliding window per spec.md §4.3 (the teacher's
// fallback uses a fixed per-minute counter; the sliding window here
// purges individually-expired entries instead of resetting in bulk).
type MemoryLimiter struct {
	mu     sync.Mutex
	models map[string]*modelState
	audit  audit.Store
}

func NewMemoryLimiter(sink audit.Store) *MemoryLimiter {
	return &MemoryLimiter{models: make(map[string]*modelState), audit: sink}
}

func (l *MemoryLimiter) state(modelID string) *modelState {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.models[modelID]
	if !ok {
		s = &modelState{}
		l.models[modelID] = s
	}
	return s
}

func (l *MemoryLimiter) Check(ctx context.Context, modelID string, estimatedTokens int, limits Limits) (Status, error) {
	s := l.state(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limited && time.Now().Before(s.resetAt) {
		reset := s.resetAt
		return Status{IsLimited: true, ResetTime: &reset}, nil
	}

	now := time.Now()
	cutoff := now.Add(-WindowDuration)
	s.entries = purge(s.entries, cutoff)

	requests := len(s.entries)
	tokens := estimatedTokens
	for _, e := range s.entries {
		tokens += e.tokens
	}

	utilization := utilizationPercent(requests, tokens, limits)
	isLimited := utilization >= ThresholdPercent

	requestsRemaining := limits.RequestsPerMinute - requests
	if requestsRemaining < 0 {
		requestsRemaining = 0
	}
	tokensRemaining := limits.TokensPerMinute - tokens
	if tokensRemaining < 0 {
		tokensRemaining = 0
	}

	status := Status{
		IsLimited:         isLimited,
		RequestsRemaining: requestsRemaining,
		TokensRemaining:   tokensRemaining,
	}
	if isLimited {
		reset := now.Add(DefaultResetWindow)
		status.ResetTime = &reset
	}
	return status, nil
}

func purge(entries []windowEntry, cutoff time.Time) []windowEntry {
	kept := entries[:0:0]
	for _, e := range entries {
		if e.at.After(cutoff) {
			kept = append(kept, e)
		}
	}
	return kept
}

func (l *MemoryLimiter) Record(ctx context.Context, modelID string, tokens int, wasRateLimited bool, resetAfter time.Duration) error {
	s := l.state(modelID)
	now := time.Now()

	s.mu.Lock()
	s.entries = append(s.entries, windowEntry{at: now, tokens: tokens})
	if wasRateLimited {
		window := resetAfter
		if window <= 0 {
			window = DefaultResetWindow
		}
		s.limited = true
		s.resetAt = now.Add(window)
	}
	s.mu.Unlock()

	if wasRateLimited && l.audit != nil {
		_, _ = l.audit.Record(ctx, audit.Entry{
			Kind:     audit.KindProcessing,
			Severity: audit.SeverityWarning,
			Action:   "rate_limited",
			Category: "ratelimit",
			Payload:  audit.Payload{Metadata: map[string]any{"model_id": modelID}},
		})
	}
	return nil
}

func (l *MemoryLimiter) IsLimited(ctx context.Context, modelID string) (bool, error) {
	s := l.state(modelID)
	s.mu.Lock()
	if !s.limited {
		s.mu.Unlock()
		return false, nil
	}
	if time.Now().Before(s.resetAt) {
		s.mu.Unlock()
		return true, nil
	}
	s.limited = false
	resetAt := s.resetAt
	s.mu.Unlock()

	if l.audit != nil {
		_, _ = l.audit.Record(ctx, audit.Entry{
			Kind:     audit.KindProcessing,
			Severity: audit.SeverityInfo,
			Action:   "rate_limit_reset",
			Category: "ratelimit",
			Payload:  audit.Payload{Metadata: map[string]any{"model_id": modelID, "was_until": resetAt}},
		})
	}
	return false, nil
}

func (l *MemoryLimiter) TimeUntilReset(ctx context.Context, modelID string) (int64, error) {
	s := l.state(modelID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.limited {
		return -1, nil
	}
	remaining := time.Until(s.resetAt)
	if remaining < 0 {
		return 0, nil
	}
	return int64(remaining.Seconds()), nil
}
