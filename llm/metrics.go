// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package llm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// routerMetrics tracks routed-call counts and failover rate on a private
// registry per Router, the routing-layer counterpart of workerpool's
// poolMetrics.
type routerMetrics struct {
	registry    *prometheus.Registry
	callsTotal  *prometheus.CounterVec
	failovers   prometheus.Counter
	rateLimited prometheus.Counter
}

func newRouterMetrics() *routerMetrics {
	m := &routerMetrics{
		registry: prometheus.NewRegistry(),
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "llm_router_calls_total",
			Help: "Model calls issued by the router, partitioned by outcome.",
		}, []string{"outcome"}),
		failovers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_router_failovers_total",
			Help: "Calls that succeeded only after failing over to a lower-ranked model.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "llm_router_rate_limit_trips_total",
			Help: "Candidate models skipped during Route because they were rate-limited.",
		}),
	}
	m.registry.MustRegister(m.callsTotal, m.failovers, m.rateLimited)
	return m
}

// Registry exposes the router's private prometheus registry so a caller
// can mount it under its own metrics endpoint.
func (r *Router) Registry() *prometheus.Registry {
	return r.metrics.registry
}
