// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/axonkernel/orchestrator/audit"
	"github.com/axonkernel/orchestrator/kernelerr"
	"github.com/axonkernel/orchestrator/modelregistry"
	"github.com/axonkernel/orchestrator/ratelimit"
)

// Provider issues the actual call to a backend model. Concrete
// implementations live outside this package's scope (spec.md §1 treats
// model inference as external); tests and callers supply a stub.
type Provider interface {
	Complete(ctx context.Context, modelID string, req Request) (Response, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, modelID string, req Request) (Response, error)

func (f ProviderFunc) Complete(ctx context.Context, modelID string, req Request) (Response, error) {
	return f(ctx, modelID, req)
}

// Router is the C4 facade: route() ranks candidates, call() dispatches
// with failover, should_switch() flags quality degradation. Its weighted
// scoring generalizes the teacher's routerLoadBalancer (orchestrator/llm/
// router.go), which picks among a fixed provider list by static weight,
// into a dynamic score over observed success rate, latency, cost, and
// quality pulled from C2/C3.
type Router struct {
	registry  *modelregistry.Service
	limiter   ratelimit.Limiter
	provider  Provider
	auditSink audit.Store

	qualityThreshold float64

	mu            sync.Mutex
	recentScores  map[string][]float64 // modelID -> last N overall scores, newest last
	scoreWindow   int

	metrics *routerMetrics
}

type RouterOption func(*Router)

func WithQualityThreshold(t float64) RouterOption {
	return func(r *Router) { r.qualityThreshold = t }
}

func WithScoreWindow(n int) RouterOption {
	return func(r *Router) { r.scoreWindow = n }
}

func NewRouter(registry *modelregistry.Service, limiter ratelimit.Limiter, provider Provider, auditSink audit.Store, opts ...RouterOption) *Router {
	r := &Router{
		registry:         registry,
		limiter:          limiter,
		provider:         provider,
		auditSink:        auditSink,
		qualityThreshold: 0.7,
		recentScores:     make(map[string][]float64),
		scoreWindow:      10,
		metrics:          newRouterMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route returns a ranked list of candidate models for call, filtering out
// disabled, rate-limited, and unhealthy (no registry entry) models.
func (r *Router) Route(ctx context.Context, call Call) ([]RankedModel, error) {
	var candidates []modelregistry.ModelMetadata
	if len(call.CapabilityTags) == 0 {
		candidates = r.registry.Catalog().List()
	} else {
		seen := map[string]bool{}
		for _, tag := range call.CapabilityTags {
			for _, m := range r.registry.Catalog().ListByCapability(tag) {
				if !seen[m.ModelID] {
					seen[m.ModelID] = true
					candidates = append(candidates, m)
				}
			}
		}
	}

	var ranked []RankedModel
	for i, m := range candidates {
		if !m.Enabled {
			continue
		}
		if len(call.PreferredProviders) > 0 && !containsStr(call.PreferredProviders, m.Provider) {
			continue
		}
		limited, err := r.limiter.IsLimited(ctx, m.ModelID)
		if err == nil && limited {
			r.metrics.rateLimited.Inc()
			continue
		}
		perf, err := r.registry.Performance(ctx, m.ModelID, 24)
		if err != nil {
			continue
		}
		costPer1k := m.PricePer1kIn + m.PricePer1kOut
		if call.MaxCostUSD > 0 && costPer1k > call.MaxCostUSD {
			continue
		}
		avgQuality := r.averageRecentScore(m.ModelID)
		if call.MinQuality > 0 && avgQuality > 0 && avgQuality < call.MinQuality {
			continue
		}

		score := scoreModel(perf, costPer1k, avgQuality)
		ranked = append(ranked, RankedModel{ModelID: m.ModelID, Score: score})
		_ = i
	}

	// Stable sort descending by score; ties prefer in-registry order
	// (spec.md §4.7.4), which the stable sort preserves because
	// candidates/ranked are built in catalog order.
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })

	if len(ranked) == 0 {
		return nil, kernelerr.ErrNoAvailableModel
	}
	return ranked, nil
}

func scoreModel(perf modelregistry.PerformanceReport, costPer1k, quality float64) float64 {
	successWeight := 0.35
	latencyWeight := 0.25
	costWeight := 0.20
	qualityWeight := 0.20

	successTerm := perf.SuccessRate
	latencyTerm := 1.0
	if perf.P95Latency > 0 {
		latencyTerm = 1.0 / (1.0 + perf.P95Latency.Seconds())
	}
	costTerm := 1.0
	if costPer1k > 0 {
		costTerm = 1.0 / (1.0 + costPer1k)
	}
	qualityTerm := quality
	if qualityTerm == 0 {
		qualityTerm = 0.5 // no observations yet; neutral prior
	}

	return successWeight*successTerm + latencyWeight*latencyTerm + costWeight*costTerm + qualityWeight*qualityTerm
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// Call issues the call against the best-ranked model, recording cost and
// performance via C2, evaluating quality, and falling over to the next
// candidate on failure or rate limit.
func (r *Router) Call(ctx context.Context, call Call, taskID string) (CallResult, error) {
	ranked, err := r.Route(ctx, call)
	if err != nil {
		return CallResult{}, err
	}

	req := Request{Prompt: call.Prompt, MaxTokens: call.EstimatedTokens, Role: call.Role}
	var attempts []string
	for i, candidate := range ranked {
		attempts = append(attempts, candidate.ModelID)
		start := time.Now()
		resp, err := r.provider.Complete(ctx, candidate.ModelID, req)
		latencyMs := float64(time.Since(start).Milliseconds())

		if err != nil {
			_ = r.registry.RecordPerformance(ctx, candidate.ModelID, call.Role, taskID, latencyMs, false, nil)
			_ = r.limiter.Record(ctx, candidate.ModelID, 0, isRateLimitErr(err), 0)
			if r.auditSink != nil {
				_, _ = r.auditSink.Record(ctx, audit.Entry{
					Kind:     audit.KindAgentEvent,
					Severity: audit.SeverityWarning,
					Action:   "model_failover",
					Category: "llm",
					Payload:  audit.Payload{Metadata: map[string]any{"model_id": candidate.ModelID, "error": err.Error()}},
				})
			}
			if i == len(ranked)-1 {
				r.metrics.callsTotal.WithLabelValues("failure").Inc()
				return CallResult{Attempts: attempts}, fmt.Errorf("llm: all candidates failed, last error: %w", err)
			}
			continue
		}

		meta, _ := r.registry.Catalog().Get(candidate.ModelID)
		cost := modelregistry.CalculateCost(meta, resp.InTokens, resp.OutTokens)
		_ = r.registry.RecordCost(ctx, candidate.ModelID, call.Role, taskID, resp.InTokens, resp.OutTokens, cost)

		quality := EvaluateQuality(call.Prompt, resp.Content, call.EvaluationDisabled)
		overall := quality.Overall
		_ = r.registry.RecordPerformance(ctx, candidate.ModelID, call.Role, taskID, latencyMs, true, &overall)
		_ = r.limiter.Record(ctx, candidate.ModelID, resp.InTokens+resp.OutTokens, false, 0)
		r.recordScore(candidate.ModelID, overall)

		r.metrics.callsTotal.WithLabelValues("success").Inc()
		if i > 0 {
			r.metrics.failovers.Inc()
		}

		return CallResult{
			ModelID:    candidate.ModelID,
			Response:   resp,
			Quality:    quality,
			FailedOver: i > 0,
			Attempts:   attempts,
		}, nil
	}

	return CallResult{Attempts: attempts}, kernelerr.ErrNoAvailableModel
}

func isRateLimitErr(err error) bool {
	if err == nil {
		return false
	}
	kind, ok := kernelerr.KindOf(err)
	return ok && kind == kernelerr.KindCapacityExceeded
}

func (r *Router) recordScore(modelID string, score float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scores := append(r.recentScores[modelID], score)
	if len(scores) > r.scoreWindow {
		scores = scores[len(scores)-r.scoreWindow:]
	}
	r.recentScores[modelID] = scores
}

func (r *Router) averageRecentScore(modelID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	scores := r.recentScores[modelID]
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// ShouldSwitch returns true iff three or more of the last ten observed
// quality scores for modelID are below the configured quality threshold,
// per spec.md §4.4 and the invariant of §8.10.
func (r *Router) ShouldSwitch(modelID string) bool {
	r.mu.Lock()
	scores := append([]float64(nil), r.recentScores[modelID]...)
	r.mu.Unlock()
	return ShouldSwitch(scores, r.qualityThreshold)
}

// ShouldSwitch is the pure, testable form of the predicate: among the
// last 10 entries of scores (oldest-first), at least 3 below threshold.
func ShouldSwitch(scores []float64, threshold float64) bool {
	if len(scores) > 10 {
		scores = scores[len(scores)-10:]
	}
	var below int
	for _, s := range scores {
		if s < threshold {
			below++
		}
	}
	return below >= 3
}
