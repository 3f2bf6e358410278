package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records events in Prometheus collectors.
type PromSink struct {
	webhooks    *prometheus.CounterVec
	intents     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	locations   *prometheus.CounterVec
	httpLatency *prometheus.HistogramVec
}

// NewPromSink registers the collectors on reg. If reg is nil, the default
// registerer is used. Collectors that are already registered are reused.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	s := &PromSink{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moveops_webhook_events_total",
			Help: "Payment webhook events by type and outcome",
		}, []string{"kind", "outcome"}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moveops_payment_intents_total",
			Help: "Payment intent requests by payment type and outcome",
		}, []string{"payment_type", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moveops_job_transitions_total",
			Help: "Job status transitions",
		}, []string{"from", "to"}),
		locations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moveops_driver_location_fixes_total",
			Help: "Driver location fixes received over MQTT",
		}, []string{"outcome"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "moveops_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	var err error
	if s.webhooks, err = registerCounter(reg, s.webhooks); err != nil {
		return nil, err
	}
	if s.intents, err = registerCounter(reg, s.intents); err != nil {
		return nil, err
	}
	if s.transitions, err = registerCounter(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.locations, err = registerCounter(reg, s.locations); err != nil {
		return nil, err
	}
	if err := reg.Register(s.httpLatency); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		s.httpLatency = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return s, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func (s *PromSink) RecordWebhookEvent(kind, outcome string) {
	s.webhooks.WithLabelValues(kind, outcome).Inc()
}

func (s *PromSink) RecordPaymentIntent(paymentType, outcome string) {
	s.intents.WithLabelValues(paymentType, outcome).Inc()
}

func (s *PromSink) RecordJobTransition(from, to string) {
	s.transitions.WithLabelValues(from, to).Inc()
}

func (s *PromSink) RecordLocationFix(outcome string) {
	s.locations.WithLabelValues(outcome).Inc()
}

func (s *PromSink) ObserveHTTP(method, route string, status int, d time.Duration) {
	s.httpLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
