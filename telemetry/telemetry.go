// Package telemetry exposes prometheus metrics for catch-up engines.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catchup"

// Metrics records the work of every engine sharing it, labelled by stream id.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	batches           *prometheus.CounterVec   // by stream and outcome (ok/error)
	items             *prometheus.CounterVec   // items fetched, by stream
	coalesced         *prometheus.CounterVec   // calls that joined an in-flight batch
	fetchDuration     *prometheus.HistogramVec // upstream fetch latency
	aggregationErrors *prometheus.CounterVec   // by stream, subscription and decision
	subscriptions     *prometheus.GaugeVec     // active subscriptions, by stream
}

// New creates metrics registered on a fresh registry
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates metrics registered on registry
func NewWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of catch-up batches run",
		}, []string{"stream", "outcome"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Total number of items fetched from upstream streams",
		}, []string{"stream"}),
		coalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coalesced_calls_total",
			Help:      "Total number of batch requests served by an in-flight batch",
		}, []string{"stream"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream fetch duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"stream"}),
		aggregationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregation_errors_total",
			Help:      "Total number of failed aggregations",
		}, []string{"stream", "subscription", "decision"}),
		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscriptions",
			Help:      "Number of active subscriptions",
		}, []string{"stream"}),
	}

	registry.MustRegister(m.batches, m.items, m.coalesced, m.fetchDuration, m.aggregationErrors, m.subscriptions)
	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) BatchCompleted(stream string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.batches.WithLabelValues(stream, outcome).Inc()
}

func (m *Metrics) Fetched(stream string, items int, took time.Duration) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(stream).Add(float64(items))
	m.fetchDuration.WithLabelValues(stream).Observe(took.Seconds())
}

func (m *Metrics) Coalesced(stream string) {
	if m == nil {
		return
	}
	m.coalesced.WithLabelValues(stream).Inc()
}

func (m *Metrics) AggregationFailed(stream, subscription, decision string) {
	if m == nil {
		return
	}
	m.aggregationErrors.WithLabelValues(stream, subscription, decision).Inc()
}

func (m *Metrics) Subscribed(stream string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(stream).Inc()
}

func (m *Metrics) Unsubscribed(stream string) {
	if m == nil {
		return
	}
	m.subscriptions.WithLabelValues(stream).Dec()
}
