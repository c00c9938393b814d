// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package ratelimit

import (
	"context"
	"time"
)

// Limiter is the C3 contract: per-model sliding-window accounting plus
// explicit limited/reset state, backed by C1 for rate-limit and reset
// events.
type Limiter interface {
	// Check purges entries older than the sliding window, sums requests
	// and tokens in the remainder, and reports utilization against limits.
	Check(ctx context.Context, modelID string, estimatedTokens int, limits Limits) (Status, error)

	// Record appends a (timestamp, tokens) entry. wasRateLimited, when
	// true, marks the model limited immediately per the provider's
	// authoritative signal (spec.md §4.3 Failure semantics), bypassing
	// the sliding-window computation. resetAfter overrides
	// DefaultResetWindow when the provider supplies its own value; pass 0
	// to use the default.
	Record(ctx context.Context, modelID string, tokens int, wasRateLimited bool, resetAfter time.Duration) error

	// IsLimited reads cached limited status, clearing and recording a
	// reset event if the reset-until time has passed.
	IsLimited(ctx context.Context, modelID string) (bool, error)

	// TimeUntilReset returns seconds until reset, 0 if past, or -1 if the
	// model is not limited.
	TimeUntilReset(ctx context.Context, modelID string) (int64, error)
}
