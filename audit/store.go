// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"sort"
	"time"
)

// Store is the durable, append-only audit log contract (spec.md §4.1).
// Implementations MUST NOT mutate or drop a recorded entry; Record must
// fail loudly (return an error) rather than silently swallow a write when
// the backing store is unreachable — unlike the teacher's
// orchestrator/audit_logger.go, which falls back to a silent no-op logger
// when the database is unavailable. That fallback is deliberately not
// carried forward here; see DESIGN.md.
type Store interface {
	// Record persists one entry and returns its assigned id.
	Record(ctx context.Context, entry Entry) (int64, error)

	// Query returns entries matching filter, newest first, bounded by
	// filter.Limit (0 means unbounded).
	Query(ctx context.Context, filter Filter) ([]Entry, error)

	// RequestTrail returns the full ordered history for one request.
	RequestTrail(ctx context.Context, requestID string) ([]Entry, error)

	// ErrorSummary aggregates error-kind entries within window.
	ErrorSummary(ctx context.Context, window time.Duration) (ErrorSummary, error)

	// Cleanup deletes entries older than retention and returns the count
	// removed. Best-effort and idempotent.
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)

	// Close releases any held resources.
	Close() error
}

// sortEntries orders entries by timestamp descending, then id descending
// as a tiebreak — audit entries are totally ordered by persistence id
// (spec.md §5 Ordering guarantees), so two entries with indistinguishable
// timestamps under concurrent writes must still sort deterministically.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Timestamp.Equal(entries[j].Timestamp) {
			return entries[i].Timestamp.After(entries[j].Timestamp)
		}
		return entries[i].ID > entries[j].ID
	})
}

func matches(e Entry, f Filter) bool {
	if f.UserID != "" && e.Actors.UserID != f.UserID {
		return false
	}
	if f.RequestID != "" && e.Actors.RequestID != f.RequestID {
		return false
	}
	if f.WorkflowID != "" && e.Actors.WorkflowID != f.WorkflowID {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

func applyLimit(entries []Entry, limit int) []Entry {
	if limit > 0 && len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
