// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workflow

import (
	"sync"
	"time"
)

// Metrics reports get_metrics()'s telemetry view over an Engine's
// lifetime evaluations and its evaluation cache.
type Metrics struct {
	TotalEvaluations      int64
	SuccessfulEvaluations int64
	SuccessRate           float64
	AvgEvaluationTime     time.Duration
	CacheHitRate          float64
	CacheSize             int
}

// engineMetrics accumulates the raw counters behind Metrics.
type engineMetrics struct {
	mu            sync.Mutex
	total         int64
	successful    int64
	totalDuration time.Duration
}

// record registers one Evaluate() call: elapsed wall time, and whether it
// produced at least one candidate match.
func (m *engineMetrics) record(elapsed time.Duration, successful bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.totalDuration += elapsed
	if successful {
		m.successful++
	}
}

func (m *engineMetrics) snapshot(cache *evaluationCache) Metrics {
	m.mu.Lock()
	total, successful, totalDuration := m.total, m.successful, m.totalDuration
	m.mu.Unlock()

	snap := Metrics{
		TotalEvaluations:      total,
		SuccessfulEvaluations: successful,
	}
	if total > 0 {
		snap.SuccessRate = float64(successful) / float64(total)
		snap.AvgEvaluationTime = totalDuration / time.Duration(total)
	}
	if cache != nil {
		snap.CacheHitRate = cache.hitRate()
		snap.CacheSize = cache.size()
	}
	return snap
}
