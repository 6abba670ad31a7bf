// Package metrics exposes the Prometheus collectors shared by both binaries.
// A nil *Recorder is valid and records nothing.
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

// Outcome labels
const (
	OutcomeApplied  = "applied"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeIgnored  = "ignored"
)

type Recorder struct {
	gatherer prometheus.Gatherer

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	ledgerMutations     *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	projectedEvents     *prometheus.CounterVec
	outboxRelayed       *prometheus.CounterVec
}

// NewRecorder registers the collectors on a fresh registry together with the Go runtime collectors
func NewRecorder(namespace string) *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newRecorder(namespace, registry, registry)
}

func newRecorder(namespace string, registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Recorder {
	factory := promauto.With(registerer)

	return &Recorder{
		gatherer: gatherer,
		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ledgerMutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Ledger mutations by kind and outcome",
		}, []string{"kind", "outcome"}),
		webhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Payment gateway events by type and outcome",
		}, []string{"event", "outcome"}),
		projectedEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "statement_projections_total",
			Help:      "Ledger events projected into the statement store",
		}, []string{"outcome"}),
		outboxRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_messages_total",
			Help:      "Outbox messages relayed to the event stream",
		}, []string{"outcome"}),
	}
}

func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (r *Recorder) LedgerMutation(kind, outcome string) {
	if r == nil {
		return
	}
	r.ledgerMutations.WithLabelValues(kind, outcome).Inc()
}

func (r *Recorder) WebhookEvent(event, outcome string) {
	if r == nil {
		return
	}
	r.webhookEvents.WithLabelValues(event, outcome).Inc()
}

func (r *Recorder) StatementProjection(outcome string) {
	if r == nil {
		return
	}
	r.projectedEvents.WithLabelValues(outcome).Inc()
}

func (r *Recorder) OutboxRelay(outcome string) {
	if r == nil {
		return
	}
	r.outboxRelayed.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
