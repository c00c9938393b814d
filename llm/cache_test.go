// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func newTestResponseCache(t *testing.T, ttl time.Duration) (*ResponseCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewResponseCache(client, ttl), mr
}

func TestResponseCacheMissThenHit(t *testing.T) {
	cache, _ := newTestResponseCache(t, time.Minute)
	ctx := context.Background()
	key := HashKey("gpt-4", Request{Prompt: "hello", Role: "pm"})

	_, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected cache miss before Put")
	}

	if err := cache.Put(ctx, key, "gpt-4", key, Response{Content: "world"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected cache hit after Put")
	}
	if entry.Response.Content != "world" {
		t.Errorf("Content = %q, want world", entry.Response.Content)
	}
	if entry.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", entry.HitCount)
	}
}

func TestResponseCacheExpiresAfterTTL(t *testing.T) {
	cache, mr := newTestResponseCache(t, time.Second)
	ctx := context.Background()
	key := HashKey("gpt-4", Request{Prompt: "hello", Role: "pm"})

	_ = cache.Put(ctx, key, "gpt-4", key, Response{Content: "world"})
	mr.FastForward(2 * time.Second)

	_, ok, err := cache.Get(ctx, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected entry to have expired")
	}
}

func TestHashKeyDistinguishesPrompts(t *testing.T) {
	a := HashKey("gpt-4", Request{Prompt: "hello", Role: "pm"})
	b := HashKey("gpt-4", Request{Prompt: "goodbye", Role: "pm"})
	if a == b {
		t.Error("expected different prompts to hash differently")
	}
}

func TestMemoryResponseCacheEvictsLeastRecentlyAccessed(t *testing.T) {
	cache := NewMemoryResponseCache(time.Minute, 2)
	cache.Put("a", "gpt-4", "a", Response{Content: "1"})
	cache.Put("b", "gpt-4", "b", Response{Content: "2"})
	cache.Get("a")

	cache.Put("c", "gpt-4", "c", Response{Content: "3"})

	if _, ok := cache.Get("b"); ok {
		t.Error("expected b to be evicted as least-recently accessed")
	}
	if _, ok := cache.Get("a"); !ok {
		t.Error("expected a to remain (recently accessed)")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("expected c to remain (just inserted)")
	}
}
