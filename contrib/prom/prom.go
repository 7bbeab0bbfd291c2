// Package prom provides a core.TelemetryHook that records Prometheus
// metrics for API calls.
//
// Metrics are labelled by operation name and outcome, never by path, so
// product ids do not create new series.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/petal-labs/showroom/core"
)

// Hook records call counts, latencies, retries and in-flight calls.
type Hook struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
	inflight *prometheus.GaugeVec
}

var (
	_ core.TelemetryHook = (*Hook)(nil)
	_ core.RetryObserver = (*Hook)(nil)
)

// Option configures a Hook.
type Option func(*options)

type options struct {
	namespace string
	buckets   []float64
}

// WithNamespace sets the metric namespace. The default is "showroom".
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithBuckets sets the latency histogram buckets, in seconds.
func WithBuckets(b []float64) Option {
	return func(o *options) { o.buckets = b }
}

// New creates a Hook and registers its collectors with reg.
func New(reg prometheus.Registerer, opts ...Option) (*Hook, error) {
	o := options{namespace: "showroom", buckets: prometheus.DefBuckets}
	for _, opt := range opts {
		opt(&o)
	}

	h := &Hook{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "calls_total",
			Help:      "API calls by operation, outcome and final HTTP status.",
		}, []string{"op", "outcome", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "call_duration_seconds",
			Help:      "API call latency including retries.",
			Buckets:   o.buckets,
		}, []string{"op", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "retries_total",
			Help:      "Scheduled retries by operation and error kind.",
		}, []string{"op", "kind"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: o.namespace,
			Name:      "calls_in_flight",
			Help:      "Calls started but not yet finished.",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{h.calls, h.duration, h.retries, h.inflight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// MustNew is like New but panics on registration errors.
func MustNew(reg prometheus.Registerer, opts ...Option) *Hook {
	h, err := New(reg, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// OnRequestStart increments the in-flight gauge.
func (h *Hook) OnRequestStart(e core.RequestStartEvent) {
	h.inflight.WithLabelValues(e.Op).Inc()
}

// OnRequestEnd records the outcome and latency.
func (h *Hook) OnRequestEnd(e core.RequestEndEvent) {
	outcome := "ok"
	if e.Err != nil {
		outcome = core.Kind(e.Err)
	}
	h.inflight.WithLabelValues(e.Op).Dec()
	h.calls.WithLabelValues(e.Op, outcome, strconv.Itoa(e.Status)).Inc()
	h.duration.WithLabelValues(e.Op, outcome).Observe(e.Duration().Seconds())
}

// OnRetry counts the retry.
func (h *Hook) OnRetry(e core.RetryEvent) {
	h.retries.WithLabelValues(e.Op, core.Kind(e.Err)).Inc()
}
