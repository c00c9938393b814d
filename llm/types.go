// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package llm is the model router (component C4): it selects the best
// available model per call, consulting the model registry (C2) and rate
// limiter (C3), performs failover, and evaluates response quality. It
// generalizes the teacher's orchestrator/llm weighted-provider router
// (router.go, routing_strategy.go) from a fixed provider list to a
// dynamic, per-call ranked model list driven by observed cost,
// performance, and health, per spec.md §4.4.
package llm

import "time"

// Call describes a requested model invocation.
type Call struct {
	Role            string
	CapabilityTags  []string
	EstimatedTokens int
	MaxCostUSD      float64
	MinQuality      float64
	PreferredProviders []string
	Prompt          string
	EvaluationDisabled bool
}

// Request is the provider-facing request shape, analogous to the
// teacher's CompletionRequest.
type Request struct {
	Prompt    string
	MaxTokens int
	Role      string
}

// Response is the provider-facing response shape.
type Response struct {
	Content    string
	InTokens   int
	OutTokens  int
	LatencyMs  float64
}

// RankedModel is one entry in route()'s result: a model id plus the
// scalar score that placed it.
type RankedModel struct {
	ModelID string
	Score   float64
}

// QualityScore holds the three heuristic components plus the fixed
// weighted overall, per spec.md §3: overall = 0.40·completeness +
// 0.35·relevance + 0.25·coherence.
type QualityScore struct {
	Completeness float64
	Relevance    float64
	Coherence    float64
	Overall      float64
}

func NewQualityScore(completeness, relevance, coherence float64) QualityScore {
	return QualityScore{
		Completeness: completeness,
		Relevance:    relevance,
		Coherence:    coherence,
		Overall:      0.40*completeness + 0.35*relevance + 0.25*coherence,
	}
}

// CallResult is what Call() reports back to the caller: the chosen model,
// the provider response, its quality, and whether a failover occurred.
type CallResult struct {
	ModelID   string
	Response  Response
	Quality   QualityScore
	FailedOver bool
	Attempts  []string
}

// CacheEntry memoizes a model call, per spec.md §3.
type CacheEntry struct {
	Key         string
	ModelID     string
	RequestHash string
	Response    Response
	CachedAt    time.Time
	ExpiresAt   time.Time
	HitCount    int
	LastAccess  time.Time
}
