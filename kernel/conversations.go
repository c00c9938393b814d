// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package kernel

import (
	"sync"
	"time"

	"github.com/axonkernel/orchestrator/workflow"
)

// ConversationStore holds one workflow.ConversationContext per
// conversation, evicted by an LRU-with-TTL policy per spec.md §3:
// entries older than ttl are dropped first; if the store is still over
// maxEntries, the least-recently-interacted-with entry is evicted next.
// This generalizes the ring-buffer trim-oldest idiom used throughout the
// teacher's per-stage metrics (drop the oldest entry once a slice passes
// its cap) from a fixed-size slice to a map keyed by conversation id.
type ConversationStore struct {
	mu         sync.Mutex
	contexts   map[string]*workflow.ConversationContext
	maxEntries int
	ttl        time.Duration
}

// NewConversationStore creates a store bounded by maxEntries and ttl.
func NewConversationStore(maxEntries int, ttl time.Duration) *ConversationStore {
	if maxEntries <= 0 {
		maxEntries = 10000
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ConversationStore{
		contexts:   make(map[string]*workflow.ConversationContext),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// GetOrCreate returns the conversation context for id, creating one for
// userID if it doesn't exist, and bumps its last-interaction time and
// interaction count.
func (s *ConversationStore) GetOrCreate(id, userID string) *workflow.ConversationContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictExpiredLocked()

	ctx, ok := s.contexts[id]
	if !ok {
		ctx = &workflow.ConversationContext{
			ConversationID: id,
			UserID:         userID,
			SessionStart:   time.Now(),
			LastInteraction: time.Now(),
			Data:           make(map[string]any),
		}
		s.contexts[id] = ctx
		s.evictOverflowLocked()
	}
	ctx.LastInteraction = time.Now()
	ctx.InteractionCount++
	return ctx
}

// Get returns the conversation context for id without creating one.
func (s *ConversationStore) Get(id string) (*workflow.ConversationContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, ok := s.contexts[id]
	return ctx, ok
}

// Len reports the current number of tracked conversations.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.contexts)
}

func (s *ConversationStore) evictExpiredLocked() {
	cutoff := time.Now().Add(-s.ttl)
	for id, ctx := range s.contexts {
		if ctx.LastInteraction.Before(cutoff) {
			delete(s.contexts, id)
		}
	}
}

// evictOverflowLocked drops the least-recently-interacted-with entry
// while the store exceeds maxEntries. Called only right after an
// insertion, so at most one entry needs to go.
func (s *ConversationStore) evictOverflowLocked() {
	for len(s.contexts) > s.maxEntries {
		var oldestID string
		var oldest time.Time
		for id, ctx := range s.contexts {
			if oldestID == "" || ctx.LastInteraction.Before(oldest) {
				oldestID = id
				oldest = ctx.LastInteraction
			}
		}
		if oldestID == "" {
			return
		}
		delete(s.contexts, oldestID)
	}
}
