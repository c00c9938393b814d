// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/shared/logger"
)

// RedisLimiter implements Limiter against Redis sorted sets, one per
// model, score = request unix-nano timestamp, member = "<nanos>:<tokens>".
// This is the teacher's sliding-window pipeline (ZREMRANGEBYSCORE +
// ZRANGEBYSCORE + ZADD) generalized from a single request counter to
// request-and-token accounting, per spec.md §4.3.
//
// On any Redis error, RedisLimiter fails open — allows the request and
// logs a warning — matching the teacher's explicit "failing open"
// behavior in agent/redis_rate_limit.go.
type RedisLimiter struct {
	client *redis.Client
	audit  audit.Store
	log    *logger.Logger

	mu       sync.Mutex
	limited  map[string]time.Time // modelID -> reset-until
}

func NewRedisLimiter(client *redis.Client, sink audit.Store, log *logger.Logger) *RedisLimiter {
	if log == nil {
		log = logger.New("ratelimit")
	}
	return &RedisLimiter{
		client:  client,
		audit:   sink,
		log:     log,
		limited: make(map[string]time.Time),
	}
}

func key(modelID string) string {
	return fmt.Sprintf("ratelimit:%s", modelID)
}

func (l *RedisLimiter) Check(ctx context.Context, modelID string, estimatedTokens int, limits Limits) (Status, error) {
	if limited, until := l.cachedLimited(modelID); limited {
		reset := until
		return Status{IsLimited: true, ResetTime: &reset}, nil
	}

	now := time.Now()
	k := key(modelID)
	minScore := now.Add(-WindowDuration).UnixNano()

	pipe := l.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, k, "0", strconv.FormatInt(minScore, 10))
	members := pipe.ZRangeByScore(ctx, k, &redis.ZRangeBy{Min: strconv.FormatInt(minScore, 10), Max: "+inf"})
	_, err := pipe.Exec(ctx)
	if err != nil {
		l.log.Warn("", "", "rate limit check failed, failing open", map[string]interface{}{"model_id": modelID, "error": err.Error()})
		return Status{IsLimited: false}, nil
	}

	entries := members.Val()
	requests := len(entries)
	tokens := estimatedTokens
	for _, m := range entries {
		tokens += parseTokens(m)
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

func utilizationPercent(requests, tokens int, limits Limits) float64 {
	var reqUtil, tokUtil float64
	if limits.RequestsPerMinute > 0 {
		reqUtil = float64(requests) / float64(limits.RequestsPerMinute) * 100
	}
	if limits.TokensPerMinute > 0 {
		tokUtil = float64(tokens) / float64(limits.TokensPerMinute) * 100
	}
	if reqUtil > tokUtil {
		return reqUtil
	}
	return tokUtil
}

func parseTokens(member string) int {
	for i := len(member) - 1; i >= 0; i-- {
		if member[i] == ':' {
			n, _ := strconv.Atoi(member[i+1:])
			return n
		}
	}
	return 0
}

func (l *RedisLimiter) Record(ctx context.Context, modelID string, tokens int, wasRateLimited bool, resetAfter time.Duration) error {
	now := time.Now()
	k := key(modelID)
	member := fmt.Sprintf("%d:%d", now.UnixNano(), tokens)

	pipe := l.client.Pipeline()
	pipe.ZAdd(ctx, k, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, k, 2*WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("", "", "rate limit record failed, failing open", map[string]interface{}{"model_id": modelID, "error": err.Error()})
	}

	if wasRateLimited {
		window := resetAfter
		if window <= 0 {
			window = DefaultResetWindow
		}
		until := now.Add(window)
		l.mu.Lock()
		l.limited[modelID] = until
		l.mu.Unlock()

		if l.audit != nil {
			_, _ = l.audit.Record(ctx, audit.Entry{
				Kind:     audit.KindProcessing,
				Severity: audit.SeverityWarning,
				Action:   "rate_limited",
				Category: "ratelimit",
				Payload:  audit.Payload{Metadata: map[string]any{"model_id": modelID, "reset_until": until}},
			})
		}
	}
	return nil
}

func (l *RedisLimiter) IsLimited(ctx context.Context, modelID string) (bool, error) {
	limited, until := l.cachedLimited(modelID)
	if limited {
		return true, nil
	}
	l.mu.Lock()
	_, wasTracked := l.limited[modelID]
	if wasTracked {
		delete(l.limited, modelID)
	}
	l.mu.Unlock()

	if wasTracked && l.audit != nil {
		_, _ = l.audit.Record(ctx, audit.Entry{
			Kind:     audit.KindProcessing,
			Severity: audit.SeverityInfo,
			Action:   "rate_limit_reset",
			Category: "ratelimit",
			Payload:  audit.Payload{Metadata: map[string]any{"model_id": modelID, "was_until": until}},
		})
	}
	return false, nil
}

func (l *RedisLimiter) TimeUntilReset(_ context.Context, modelID string) (int64, error) {
	l.mu.Lock()
	until, ok := l.limited[modelID]
	l.mu.Unlock()
	if !ok {
		return -1, nil
	}
	remaining := time.Until(until)
	if remaining < 0 {
		return 0, nil
	}
	return int64(remaining.Seconds()), nil
}

// cachedLimited reports whether modelID is currently marked limited
// without clearing the flag (used by Check, which must not itself emit a
// reset event — only IsLimited does, per spec.md §4.3).
func (l *RedisLimiter) cachedLimited(modelID string) (bool, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.limited[modelID]
	if !ok {
		return false, time.Time{}
	}
	if time.Now().After(until) {
		return false, time.Time{}
	}
	return true, until
}
