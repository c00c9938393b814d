// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// ResponseCache memoizes model calls by hash(model_id, normalized_request),
// per spec.md §4.4.1. Expired entries are skipped on read and their keys
// deleted at that point, matching the open question in spec.md §9: an
// explicit TTL is specified rather than a silent size-cap eviction.
type ResponseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResponseCache(client *redis.Client, ttl time.Duration) *ResponseCache {
	return &ResponseCache{client: client, ttl: ttl}
}

// HashKey computes the cache key for a (model, request) pair.
func HashKey(modelID string, req Request) string {
	normalized := fmt.Sprintf("%s|%d|%s", req.Role, req.MaxTokens, req.Prompt)
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("llmcache:%s:%s", modelID, hex.EncodeToString(sum[:]))
}

// Get returns a cached entry if present and unexpired, incrementing its
// hit count and last-accessed time.
func (c *ResponseCache) Get(ctx context.Context, key string) (CacheEntry, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return CacheEntry{}, false, nil
	}
	if err != nil {
		return CacheEntry{}, false, fmt.Errorf("llm: cache get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return CacheEntry{}, false, fmt.Errorf("llm: cache decode: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		_ = c.client.Del(ctx, key).Err()
		return CacheEntry{}, false, nil
	}

	entry.HitCount++
	entry.LastAccess = time.Now()
	encoded, err := json.Marshal(entry)
	if err == nil {
		remaining := time.Until(entry.ExpiresAt)
		if remaining > 0 {
			_ = c.client.Set(ctx, key, encoded, remaining).Err()
		}
	}
	return entry, true, nil
}

// Put stores resp under key with the cache's configured TTL.
func (c *ResponseCache) Put(ctx context.Context, key, modelID, requestHash string, resp Response) error {
	now := time.Now()
	entry := CacheEntry{
		Key:         key,
		ModelID:     modelID,
		RequestHash: requestHash,
		Response:    resp,
		CachedAt:    now,
		ExpiresAt:   now.Add(c.ttl),
		LastAccess:  now,
	}
	encoded, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("llm: cache encode: %w", err)
	}
	return c.client.Set(ctx, key, encoded, c.ttl).Err()
}

// MemoryResponseCache is an in-process fallback with explicit TTL and
// bounded size, evicting the least-recently-accessed entry when full.
type MemoryResponseCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[string]CacheEntry
}

func NewMemoryResponseCache(ttl time.Duration, maxSize int) *MemoryResponseCache {
	return &MemoryResponseCache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]CacheEntry),
	}
}

func (c *MemoryResponseCache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if time.Now().After(entry.ExpiresAt) {
		delete(c.entries, key)
		return CacheEntry{}, false
	}
	entry.HitCount++
	entry.LastAccess = time.Now()
	c.entries[key] = entry
	return entry, true
}

func (c *MemoryResponseCache) Put(key, modelID, requestHash string, resp Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}
	now := time.Now()
	c.entries[key] = CacheEntry{
		Key:         key,
		ModelID:     modelID,
		RequestHash: requestHash,
		Response:    resp,
		CachedAt:    now,
		ExpiresAt:   now.Add(c.ttl),
		LastAccess:  now,
	}
}

func (c *MemoryResponseCache) evictOldest() {
	var oldestKey string
	var oldestAccess time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.LastAccess.Before(oldestAccess) {
			oldestKey = k
			oldestAccess = e.LastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
