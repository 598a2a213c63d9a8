package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics — метрики оркестратора оформления заказа.
type CheckoutMetrics struct {
	started   prometheus.Counter
	succeeded prometheus.Counter
	failed    *prometheus.CounterVec
	canceled  prometheus.Counter

	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec

	active prometheus.Gauge
}

// NewCheckoutMetrics регистрирует метрики в глобальном registry.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer позволяет подставить изолированный registry (тесты).
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		started: counter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_started_total",
			Help: "Total number of submitted checkout attempts",
		}),
		succeeded: counter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_succeeded_total",
			Help: "Total number of checkout attempts that succeeded",
		}),
		failed: counterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_failed_total",
			Help: "Total number of failed checkout attempts grouped by error kind",
		}, []string{"kind"}),
		canceled: counter(registerer, prometheus.CounterOpts{
			Name: "storefront_checkout_canceled_total",
			Help: "Total number of checkout attempts canceled before order creation",
		}),
		duration: histogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout attempts in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: histogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_step_duration_seconds",
			Help:    "Duration of individual remote checkout steps in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0},
		}, []string{"step", "result"}),
		active: gauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_checkout_active",
			Help: "Number of checkout attempts currently in flight",
		}),
	}
}

// RecordStarted отмечает начало попытки (вызов submit).
func (m *CheckoutMetrics) RecordStarted() {
	m.started.Inc()
	m.active.Inc()
}

// RecordSucceeded отмечает успешное завершение.
func (m *CheckoutMetrics) RecordSucceeded(d time.Duration) {
	m.succeeded.Inc()
	m.finish(d)
}

// RecordFailed отмечает провал с видом ошибки.
func (m *CheckoutMetrics) RecordFailed(kind string, d time.Duration) {
	m.failed.WithLabelValues(kind).Inc()
	m.finish(d)
}

// RecordCanceled отмечает отмену начатой попытки до создания заказа.
func (m *CheckoutMetrics) RecordCanceled(d time.Duration) {
	m.canceled.Inc()
	m.finish(d)
}

// RecordStep записывает длительность удалённого шага.
func (m *CheckoutMetrics) RecordStep(step string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.stepDuration.WithLabelValues(step, result).Observe(d.Seconds())
}

func (m *CheckoutMetrics) finish(d time.Duration) {
	m.active.Dec()
	m.duration.Observe(d.Seconds())
}
