// Package metrics exposes Prometheus collectors fed by gateway and query
// events.
package metrics

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hanpama/scidbgo/internal/eventbus"
	"github.com/hanpama/scidbgo/internal/events"
)

// Collectors holds the registered metric vectors.
type Collectors struct {
	// GatewayRequests counts gateway requests by endpoint and HTTP status
	// ("error" when no response was received).
	GatewayRequests *prometheus.CounterVec
	// GatewayDuration is the latency of gateway requests.
	GatewayDuration *prometheus.HistogramVec
	// Queries counts logical operations by kind and outcome.
	Queries *prometheus.CounterVec
}

// Register creates the collectors on reg and subscribes them to the global
// event bus. The returned function detaches the subscriptions.
func Register(reg prometheus.Registerer) (*Collectors, func()) {
	f := promauto.With(reg)
	c := &Collectors{
		GatewayRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scidb_gateway_requests_total",
				Help: "Total number of gateway requests",
			},
			[]string{"endpoint", "status"},
		),
		GatewayDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scidb_gateway_request_duration_seconds",
				Help:    "Gateway request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		Queries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scidb_queries_total",
				Help: "Total number of logical database operations",
			},
			[]string{"kind", "status"},
		),
	}

	unsubGateway := eventbus.Subscribe(func(_ context.Context, e events.GatewayFinish) {
		status := "error"
		if e.Status != 0 {
			status = strconv.Itoa(e.Status)
		}
		c.GatewayRequests.WithLabelValues(e.Endpoint, status).Inc()
		c.GatewayDuration.WithLabelValues(e.Endpoint).Observe(e.Duration.Seconds())
	})
	unsubQuery := eventbus.Subscribe(func(_ context.Context, e events.QueryFinish) {
		status := "ok"
		if e.Err != nil {
			status = "error"
		}
		c.Queries.WithLabelValues(e.Kind, status).Inc()
	})
	return c, func() {
		unsubGateway()
		unsubQuery()
	}
}
