// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package workerpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetrics is a small set of gauges/counters registered on a private
// registry per Pool, mirroring the teacher's connector sdk/metrics.go
// percentile-histogram style reduced to the counters/gauges this
// component actually needs: active worker count, Send calls in progress
// at the bounded executor (waiting for or holding a slot), and
// per-outcome task counts.
type poolMetrics struct {
	registry      *prometheus.Registry
	activeWorkers prometheus.Gauge
	queueDepth    prometheus.Gauge
	tasksTotal    *prometheus.CounterVec
	spawnsTotal   *prometheus.CounterVec
}

func newPoolMetrics() *poolMetrics {
	m := &poolMetrics{
		registry: prometheus.NewRegistry(),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workerpool_active_workers",
			Help: "Number of worker subprocesses currently registered with the pool.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "workerpool_queue_depth",
			Help: "Number of Send calls in progress on the bounded work executor, waiting or running.",
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workerpool_tasks_total",
			Help: "Tasks dispatched through Send, partitioned by outcome.",
		}, []string{"outcome"}),
		spawnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workerpool_spawns_total",
			Help: "Worker spawn attempts, partitioned by outcome.",
		}, []string{"outcome"}),
	}
	m.registry.MustRegister(m.activeWorkers, m.queueDepth, m.tasksTotal, m.spawnsTotal)
	return m
}

// Registry exposes the pool's private prometheus registry so a caller can
// mount it under its own metrics endpoint.
func (p *Pool) Registry() *prometheus.Registry {
	return p.metrics.registry
}
