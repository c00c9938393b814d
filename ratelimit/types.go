// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package ratelimit implements the sliding-window rate limiter and health
// monitor (component C3), grounded on the teacher's
// agent/redis_rate_limit.go ZADD/ZREMRANGEBYSCORE/ZCARD pipeline, with an
// in-memory fallback for when Redis is unreachable — generalized from a
// single per-customer request counter to per-model request AND token
// accounting, per spec.md §4.3.
package ratelimit

import "time"

// Limits is the per-model rate budget.
type Limits struct {
	RequestsPerMinute int
	TokensPerMinute   int
}

// Status is the result of check().
type Status struct {
	IsLimited         bool       `json:"is_limited"`
	RequestsRemaining int        `json:"requests_remaining"`
	TokensRemaining   int        `json:"tokens_remaining"`
	ResetTime         *time.Time `json:"reset_time,omitempty"`
}

// ThresholdPercent is the default utilization threshold at which a model
// is considered limited even without an explicit provider signal.
const ThresholdPercent = 90.0

// DefaultResetWindow is the reset-until duration applied when a provider
// does not supply its own retry-after value.
const DefaultResetWindow = 60 * time.Second

// WindowDuration is the sliding window over which requests/tokens accrue.
const WindowDuration = 60 * time.Second
