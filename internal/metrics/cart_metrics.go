package metrics

import "github.com/prometheus/client_golang/prometheus"

// CartMetrics — метрики фонового сохранения корзин.
type CartMetrics struct {
	writes       *prometheus.CounterVec
	loadFailures prometheus.Counter
}

// NewCartMetrics регистрирует метрики корзины в registry.
func NewCartMetrics(registerer prometheus.Registerer) *CartMetrics {
	return &CartMetrics{
		writes: counterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_persist_total",
			Help: "Cart snapshot writes grouped by result",
		}, []string{"result"}),
		loadFailures: counter(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_load_discarded_total",
			Help: "Stored carts discarded as unreadable and replaced by an empty cart",
		}),
	}
}

// RecordWrite учитывает попытку записи снимка.
func (m *CartMetrics) RecordWrite(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.writes.WithLabelValues("error").Inc()
		return
	}
	m.writes.WithLabelValues("ok").Inc()
}

// RecordDiscardedLoad учитывает повреждённую корзину в хранилище.
func (m *CartMetrics) RecordDiscardedLoad() {
	if m == nil {
		return
	}
	m.loadFailures.Inc()
}
