// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store, useful for tests and for embedding
// in single-process deployments that do not need cross-instance durability.
// It honors the same "fail loudly, never drop" contract as PostgresStore.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
}

// NewMemoryStore creates an empty in-memory audit store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Record(_ context.Context, entry Entry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	entry.ID = s.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

func (s *MemoryStore) Query(_ context.Context, filter Filter) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if matches(e, filter) {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return applyLimit(out, filter.Limit), nil
}

func (s *MemoryStore) RequestTrail(ctx context.Context, requestID string) ([]Entry, error) {
	entries, err := s.Query(ctx, Filter{RequestID: requestID})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *MemoryStore) ErrorSummary(ctx context.Context, window time.Duration) (ErrorSummary, error) {
	since := time.Now().Add(-window)
	entries, err := s.Query(ctx, Filter{Kind: KindError, Since: since})
	if err != nil {
		return ErrorSummary{}, err
	}
	summary := ErrorSummary{
		Window:      window,
		CountByType: map[string]int{},
		CountByOp:   map[string]int{},
	}
	for _, e := range entries {
		if e.Payload.ErrorType != "" {
			summary.CountByType[e.Payload.ErrorType]++
		}
		summary.CountByOp[e.Action]++
	}
	summary.RecentErrors = entries
	return summary, nil
}

func (s *MemoryStore) Cleanup(_ context.Context, retention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-retention)
	kept := s.entries[:0:0]
	var removed int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *MemoryStore) Close() error { return nil }
