// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"
)

// evaluationCache memoizes Evaluate() results by a fingerprint of
// (intent, content hash, complexity, sorted entities), per spec.md §4.6's
// caching clause. Unlike the teacher's planning_engine.go (which has no
// cache at all) this follows the same explicit-TTL discipline as llm's
// MemoryResponseCache (spec.md §9: an explicit TTL is specified rather
// than a silent size-cap eviction), and is invalidated wholesale whenever
// the registry's version counter advances (add/remove template).
type evaluationCache struct {
	mu          sync.Mutex
	ttl         time.Duration
	registry    *Registry
	entries     map[string]cacheEntry
	registryVer uint64

	hits   int64
	misses int64
}

type cacheEntry struct {
	matches   []Match
	expiresAt time.Time
}

func newEvaluationCache(registry *Registry, ttl time.Duration) *evaluationCache {
	return &evaluationCache{
		ttl:      ttl,
		registry: registry,
		entries:  make(map[string]cacheEntry),
	}
}

func (c *evaluationCache) get(r Request) ([]Match, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidateIfStaleLocked()

	key := fingerprint(r)
	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return entry.matches, true
}

func (c *evaluationCache) put(r Request, matches []Match) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateIfStaleLocked()
	c.entries[fingerprint(r)] = cacheEntry{
		matches:   matches,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidateIfStaleLocked drops the entire cache when the registry has
// been mutated since the last check. Callers must hold c.mu.
func (c *evaluationCache) invalidateIfStaleLocked() {
	if c.registry == nil {
		return
	}
	v := c.registry.snapshotVersion()
	if v != c.registryVer {
		c.entries = make(map[string]cacheEntry)
		c.registryVer = v
	}
}

func (c *evaluationCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *evaluationCache) hitRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total)
}

// fingerprint computes the cache key of (intent, content hash, complexity,
// sorted entities) called for in spec.md §4.6.
func fingerprint(r Request) string {
	entityKeys := make([]string, 0, len(r.Entities))
	for k := range r.Entities {
		entityKeys = append(entityKeys, k)
	}
	sort.Strings(entityKeys)

	h := sha256.New()
	h.Write([]byte(r.Intent))
	h.Write([]byte("|"))
	h.Write([]byte(r.RawText))
	h.Write([]byte("|"))
	h.Write([]byte(r.Complexity))
	for _, k := range entityKeys {
		h.Write([]byte("|"))
		h.Write([]byte(k))
		h.Write([]byte("="))
		fmt.Fprintf(h, "%v", r.Entities[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
