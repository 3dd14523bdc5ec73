// Package metrics exposes Prometheus instrumentation for the workflow
// store, the history query engine, and the HTTP gateway.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreMetrics counts workflow store operations.
type StoreMetrics interface {
	IncStoreOp(op, outcome string)
	IncVersionSaved(workflow string)
}

// HistoryMetrics captures query engine behavior.
type HistoryMetrics interface {
	ObserveQuery(timeRange, status string, durationSeconds float64)
	IncStaleDiscarded()
}

// GatewayMetrics captures request metrics for the HTTP boundary.
type GatewayMetrics interface {
	ObserveRequest(method, route, status string, durationSeconds float64)
}

// Noop implements every interface without emitting anything.
type Noop struct{}

func (Noop) IncStoreOp(string, string)                      {}
func (Noop) IncVersionSaved(string)                         {}
func (Noop) ObserveQuery(string, string, float64)           {}
func (Noop) IncStaleDiscarded()                             {}
func (Noop) ObserveRequest(string, string, string, float64) {}

// Prom implements StoreMetrics and HistoryMetrics backed by Prometheus.
type Prom struct {
	storeOps       *prometheus.CounterVec
	versionsSaved  *prometheus.CounterVec
	queryLatency   *prometheus.HistogramVec
	staleDiscarded prometheus.Counter
	once           sync.Once
}

// NewProm constructs and registers the core collectors.
func NewProm(namespace string) *Prom {
	p := &Prom{
		storeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Workflow store operations by op and outcome",
		}, []string{"op", "outcome"}),
		versionsSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "versions_saved_total",
			Help:      "Versions appended per workflow",
		}, []string{"workflow"}),
		queryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_query_duration_seconds",
			Help:      "History query latency by time range and status filter",
			Buckets:   prometheus.DefBuckets,
		}, []string{"time_range", "status"}),
		staleDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_stale_results_discarded_total",
			Help:      "Query responses discarded because a newer query superseded them",
		}),
	}
	p.once.Do(func() {
		prometheus.MustRegister(p.storeOps, p.versionsSaved, p.queryLatency, p.staleDiscarded)
	})
	return p
}

func (p *Prom) IncStoreOp(op, outcome string) {
	p.storeOps.WithLabelValues(op, outcome).Inc()
}

func (p *Prom) IncVersionSaved(workflow string) {
	p.versionsSaved.WithLabelValues(workflow).Inc()
}

func (p *Prom) ObserveQuery(timeRange, status string, durationSeconds float64) {
	p.queryLatency.WithLabelValues(timeRange, status).Observe(durationSeconds)
}

func (p *Prom) IncStaleDiscarded() {
	p.staleDiscarded.Inc()
}

// Handler returns an HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// --- Gateway metrics ---

type gatewayProm struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	once     sync.Once
}

// NewGatewayProm constructs a GatewayMetrics with counters and histograms.
func NewGatewayProm(namespace string) GatewayMetrics {
	g := &gatewayProm{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method/route/status",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method/route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	g.once.Do(func() {
		prometheus.MustRegister(g.requests, g.latency)
	})
	return g
}

func (g *gatewayProm) ObserveRequest(method, route, status string, durationSeconds float64) {
	g.requests.WithLabelValues(method, route, status).Inc()
	g.latency.WithLabelValues(method, route).Observe(durationSeconds)
}
