// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vispark"

// Upstream call outcomes.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeCache = "cache_hit"
)

// Metrics holds the application's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	UpstreamCalls      *prometheus.CounterVec
	SummariesGenerated *prometheus.CounterVec
	PushNotifications  *prometheus.CounterVec
	QuotaUnitsConsumed *prometheus.CounterVec
	JobsProcessed      *prometheus.CounterVec
	HubRenewals        *prometheus.CounterVec
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		UpstreamCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_calls_total",
			Help:      "Calls to third-party services by service, operation and outcome.",
		}, []string{"service", "operation", "outcome"}),
		SummariesGenerated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_generated_total",
			Help:      "Summaries produced by provider and outcome.",
		}, []string{"provider", "outcome"}),
		PushNotifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_notifications_total",
			Help:      "PubSubHubbub push notifications by result.",
		}, []string{"result"}),
		QuotaUnitsConsumed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "youtube_quota_units_total",
			Help:      "YouTube Data API units consumed by operation.",
		}, []string{"operation"}),
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Background jobs by type and outcome.",
		}, []string{"type", "outcome"}),
		HubRenewals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_renewals_total",
			Help:      "PubSubHubbub lease renewals by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Upstream records the outcome of a third-party call.
func (m *Metrics) Upstream(service, operation string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.UpstreamCalls.WithLabelValues(service, operation, outcome).Inc()
}

// CacheHit records a lookup answered from cache.
func (m *Metrics) CacheHit(service, operation string) {
	if m == nil {
		return
	}
	m.UpstreamCalls.WithLabelValues(service, operation, OutcomeCache).Inc()
}

// Summary records a summary generation attempt.
func (m *Metrics) Summary(provider string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.SummariesGenerated.WithLabelValues(provider, outcome).Inc()
}

// Push records a push notification result such as "accepted" or "bad_signature".
func (m *Metrics) Push(result string) {
	if m == nil {
		return
	}
	m.PushNotifications.WithLabelValues(result).Inc()
}

// Quota records consumed YouTube API units.
func (m *Metrics) Quota(operation string, units int) {
	if m == nil {
		return
	}
	m.QuotaUnitsConsumed.WithLabelValues(operation).Add(float64(units))
}

// Job records a processed background job.
func (m *Metrics) Job(taskType string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.JobsProcessed.WithLabelValues(taskType, outcome).Inc()
}

// Renewal records a hub lease renewal attempt.
func (m *Metrics) Renewal(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.HubRenewals.WithLabelValues(outcome).Inc()
}
