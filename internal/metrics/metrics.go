package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the call core.
// Gateway, router and dialer record through the methods below; they never
// touch the collectors directly.
type Metrics struct {
	reg *prometheus.Registry

	// Carrier Metrics
	carrierAttemptsTotal *prometheus.CounterVec
	carrierHealthy       *prometheus.GaugeVec

	// Inbound Metrics
	inboundCallsTotal *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec

	// Outbound Metrics
	dialOutcomesTotal     *prometheus.CounterVec
	campaignTransitions   *prometheus.CounterVec
	outboundSessionsTotal prometheus.Counter

	// Event Metrics
	eventsPublishedTotal *prometheus.CounterVec
}

// New creates the collectors on a private registry that also carries the
// Go runtime and process collectors.
func New(serviceName string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": serviceName}

	return &Metrics{
		reg: reg,

		carrierAttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "carrier_attempts_total",
				Help:        "Carrier operations by provider, operation and result",
				ConstLabels: labels,
			},
			[]string{"provider", "operation", "result"},
		),
		carrierHealthy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "carrier_healthy",
				Help:        "Last health probe per carrier (1 = healthy, 0 = unhealthy)",
				ConstLabels: labels,
			},
			[]string{"provider"},
		),

		inboundCallsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "inbound_calls_total",
				Help:        "Inbound calls by routing action",
				ConstLabels: labels,
			},
			[]string{"action"},
		),
		queueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name:        "inbound_queue_depth",
				Help:        "Callers waiting per business queue",
				ConstLabels: labels,
			},
			[]string{"business_id"},
		),

		dialOutcomesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "outbound_dial_outcomes_total",
				Help:        "Outbound call attempts by outcome",
				ConstLabels: labels,
			},
			[]string{"outcome"},
		),
		campaignTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "campaign_transitions_total",
				Help:        "Campaign state transitions by target state",
				ConstLabels: labels,
			},
			[]string{"state"},
		),
		outboundSessionsTotal: f.NewCounter(
			prometheus.CounterOpts{
				Name:        "outbound_sessions_total",
				Help:        "Outbound call sessions created",
				ConstLabels: labels,
			},
		),

		eventsPublishedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "events_published_total",
				Help:        "Realtime events published by type",
				ConstLabels: labels,
			},
			[]string{"event"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) CarrierAttempt(provider, operation string, ok bool) {
	m.carrierAttemptsTotal.WithLabelValues(provider, operation, result(ok)).Inc()
}

func (m *Metrics) CarrierHealth(provider string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.carrierHealthy.WithLabelValues(provider).Set(v)
}

func (m *Metrics) InboundCall(action string) {
	m.inboundCallsTotal.WithLabelValues(action).Inc()
}

func (m *Metrics) QueueDepth(businessID string, n int) {
	m.queueDepth.WithLabelValues(businessID).Set(float64(n))
}

func (m *Metrics) DialOutcome(outcome string) {
	m.dialOutcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionCreated() {
	m.outboundSessionsTotal.Inc()
}

func (m *Metrics) CampaignTransition(state string) {
	m.campaignTransitions.WithLabelValues(state).Inc()
}

func (m *Metrics) EventPublished(eventType string) {
	m.eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
