// Package metrics exposes the pipeline's Prometheus collectors. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "atscale"

// Worker message outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeAlreadyDone = "already_done"
	OutcomeUnknownJob  = "unknown_job"
	OutcomeFailed      = "failed"
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry          *prometheus.Registry
	jobsCreated       prometheus.Counter
	resizeRequests    prometheus.Counter
	messagesProcessed *prometheus.CounterVec
	transformDuration prometheus.Histogram
	transformTimeouts prometheus.Counter
}

// New creates a Metrics with its own registry, including Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Resize jobs created by the dispatcher.",
		}),
		resizeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resize_requests_enqueued_total",
			Help:      "Resize requests placed on the job queue.",
		}),
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "messages_processed_total",
			Help:      "Queue messages handled by the worker, by outcome.",
		}, []string{"outcome"}),
		transformDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "transform_duration_seconds",
			Help:      "Time spent fetching, resizing and storing one image.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		transformTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "transforms_abandoned_total",
			Help:      "Transforms the worker stopped waiting for after the transform timeout.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.jobsCreated,
		m.resizeRequests,
		m.messagesProcessed,
		m.transformDuration,
		m.transformTimeouts,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) JobCreated() {
	if m == nil {
		return
	}
	m.jobsCreated.Inc()
}

func (m *Metrics) ResizeEnqueued() {
	if m == nil {
		return
	}
	m.resizeRequests.Inc()
}

// MessageProcessed counts one worker message under outcome.
func (m *Metrics) MessageProcessed(outcome string) {
	if m == nil {
		return
	}
	m.messagesProcessed.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransform(d time.Duration) {
	if m == nil {
		return
	}
	m.transformDuration.Observe(d.Seconds())
}

// TransformAbandoned counts a transform left running past its timeout.
func (m *Metrics) TransformAbandoned() {
	if m == nil {
		return
	}
	m.transformTimeouts.Inc()
}
