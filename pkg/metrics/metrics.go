// Package metrics exposes Prometheus counters for the subscription engine.
//
// All recording methods are safe to call on a nil *Metrics, so components
// accept metrics as an optional dependency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "entitlekit"

// Metrics holds the engine's collectors and the registry they belong to.
type Metrics struct {
	registry *prometheus.Registry

	transitions       *prometheus.CounterVec
	cacheRequests     *prometheus.CounterVec
	policyDecisions   *prometheus.CounterVec
	jobRuns           *prometheus.CounterVec
	jobTenantFailures *prometheus.CounterVec
	webhookDeliveries *prometheus.CounterVec
}

// New creates a metrics set on its own registry. When withRuntime is true the
// Go runtime and process collectors are registered as well.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscription",
			Name:      "transitions_total",
			Help:      "Committed subscription state transitions",
		}, []string{"from", "to"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "cache_requests_total",
			Help:      "Effective feature cache lookups by result",
		}, []string{"result"}),
		policyDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "decisions_total",
			Help:      "Expiration policy decisions by action",
		}, []string{"action"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "runs_total",
			Help:      "Reconciliation job runs by outcome",
		}, []string{"job", "status"}),
		jobTenantFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "job",
			Name:      "tenant_failures_total",
			Help:      "Tenants that failed processing inside a job run",
		}, []string{"job"}),
		webhookDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "deliveries_total",
			Help:      "Outbound event webhook deliveries by outcome",
		}, []string{"status"}),
	}

	reg.MustRegister(m.transitions, m.cacheRequests, m.policyDecisions, m.jobRuns, m.jobTenantFailures, m.webhookDeliveries)
	if withRuntime {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Transition counts a committed state change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// FeatureCache counts a feature cache lookup.
func (m *Metrics) FeatureCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}

// PolicyDecision counts an evaluated policy action.
func (m *Metrics) PolicyDecision(action string) {
	if m == nil {
		return
	}
	m.policyDecisions.WithLabelValues(action).Inc()
}

// JobRun counts a finished job run. status is "ok" or "error".
func (m *Metrics) JobRun(job, status string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, status).Inc()
}

// JobTenantFailure counts a tenant that failed inside a job run.
func (m *Metrics) JobTenantFailure(job string) {
	if m == nil {
		return
	}
	m.jobTenantFailures.WithLabelValues(job).Inc()
}

// WebhookDelivery counts an outbound event delivery. status is "ok",
// "failed" or "dropped".
func (m *Metrics) WebhookDelivery(status string) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(status).Inc()
}
