package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeGenerated = "generated"
	OutcomeFailed    = "failed"
	OutcomeRetry     = "retry_scheduled"
)

// FulfillmentMetrics captures pipeline health signals: attempts, terminal
// outcomes, generator latency and notification delivery.
type FulfillmentMetrics struct {
	ordersPaid        prometheus.Counter
	attempts          prometheus.Counter
	outcomes          *prometheus.CounterVec
	generatorDuration prometheus.Histogram
	notifications     *prometheus.CounterVec
	dispatcherRuns    prometheus.Counter
	dispatcherClaims  prometheus.Counter
	recoveredOrders   prometheus.Counter
}

var (
	fulfillmentMetricsOnce sync.Once
	fulfillmentMetrics     *FulfillmentMetrics
)

// Fulfillment returns the singleton fulfillment metrics registry.
func Fulfillment() *FulfillmentMetrics {
	return FulfillmentWithConfig(Config{})
}

// FulfillmentWithConfig returns the singleton using config labels.
func FulfillmentWithConfig(cfg Config) *FulfillmentMetrics {
	fulfillmentMetricsOnce.Do(func() {
		fulfillmentMetrics = newFulfillmentMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return fulfillmentMetrics
}

// ResetFulfillmentMetricsForTest resets the singleton for tests.
func ResetFulfillmentMetricsForTest() {
	fulfillmentMetricsOnce = sync.Once{}
	fulfillmentMetrics = nil
}

func newFulfillmentMetrics(registerer prometheus.Registerer, cfg Config) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	labels := constLabels(cfg)

	m := &FulfillmentMetrics{
		ordersPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pawprint_orders_paid_total",
			Help:        "Orders marked paid by the payment verifier.",
			ConstLabels: labels,
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pawprint_generation_attempts_total",
			Help:        "Generation attempts claimed by the coordinator.",
			ConstLabels: labels,
		}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pawprint_generation_outcomes_total",
			Help:        "Attempt outcomes by resulting state.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		generatorDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "pawprint_generator_duration_seconds",
			Help:        "Latency of external generator calls.",
			Buckets:     []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
			ConstLabels: labels,
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "pawprint_notifications_total",
			Help:        "Delivery notifications by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		dispatcherRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pawprint_dispatcher_runs_total",
			Help:        "Dispatcher poll iterations.",
			ConstLabels: labels,
		}),
		dispatcherClaims: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pawprint_dispatcher_claims_total",
			Help:        "Due retries re-claimed by the dispatcher.",
			ConstLabels: labels,
		}),
		recoveredOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "pawprint_recovered_orders_total",
			Help:        "Orders recovered from an abandoned generating state.",
			ConstLabels: labels,
		}),
	}

	registerer.MustRegister(
		m.ordersPaid,
		m.attempts,
		m.outcomes,
		m.generatorDuration,
		m.notifications,
		m.dispatcherRuns,
		m.dispatcherClaims,
		m.recoveredOrders,
	)
	return m
}

func (m *FulfillmentMetrics) IncOrdersPaid(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersPaid.Add(float64(n))
}

func (m *FulfillmentMetrics) IncAttempt() {
	if m == nil {
		return
	}
	m.attempts.Inc()
}

func (m *FulfillmentMetrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *FulfillmentMetrics) ObserveGeneratorDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.generatorDuration.Observe(d.Seconds())
}

func (m *FulfillmentMetrics) IncNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *FulfillmentMetrics) IncDispatcherRun() {
	if m == nil {
		return
	}
	m.dispatcherRuns.Inc()
}

func (m *FulfillmentMetrics) IncDispatcherClaims(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatcherClaims.Add(float64(n))
}

func (m *FulfillmentMetrics) IncRecovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recoveredOrders.Add(float64(n))
}
