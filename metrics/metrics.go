// Package metrics defines the Prometheus collectors warden exports.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors. A nil *Metrics records nothing, so
// components can be built without one.
type Metrics struct {
	tokensIssued   *prometheus.CounterVec
	tokensConsumed *prometheus.CounterVec
	authFailures   *prometheus.CounterVec
	ledgerPurged   prometheus.Counter

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from g
func NewWithRegistry(reg prometheus.Registerer, g prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		tokensIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tokens_issued_total",
				Help: "Total number of signed credentials, by type",
			},
			[]string{"type"},
		),
		tokensConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_tokens_consumed_total",
				Help: "Total number of ledger entries consumed on use, by type",
			},
			[]string{"type"},
		),
		authFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_auth_failures_total",
				Help: "Total number of rejected authenticator calls, by operation",
			},
			[]string{"operation"},
		),
		ledgerPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "warden_ledger_purged_total",
				Help: "Total number of expired ledger entries removed by the janitor",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "warden_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "warden_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route"},
		),
		gatherer: g,
	}
}

func (m *Metrics) TokenIssued(t core.TokenType) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) TokenConsumed(t core.TokenType) {
	if m == nil {
		return
	}
	m.tokensConsumed.WithLabelValues(string(t)).Inc()
}

// AuthFailure counts a rejected call; operation is the authenticator method name
func (m *Metrics) AuthFailure(operation string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(operation).Inc()
}

func (m *Metrics) LedgerPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.ledgerPurged.Add(float64(n))
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
