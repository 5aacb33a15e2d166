// Package metrics содержит Prometheus-метрики леджера.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmeshcher/commentpass-ledger/internal/model"
)

// Metrics хранит коллекторы леджера в собственном реестре.
type Metrics struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	totalDeposits prometheus.Gauge
	custodied     prometheus.Gauge
	paused        prometheus.Gauge
}

// New создаёт и регистрирует коллекторы.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "commentpass",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Total number of ledger operations by result.",
			},
			[]string{"operation", "result"},
		),
		totalDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "commentpass",
			Subsystem: "ledger",
			Name:      "total_deposits_minor_units",
			Help:      "Sum of user deposit balances.",
		}),
		custodied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "commentpass",
			Subsystem: "ledger",
			Name:      "custodied_minor_units",
			Help:      "Value held by the ledger on behalf of users and the operator.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "commentpass",
			Subsystem: "ledger",
			Name:      "paused",
			Help:      "1 while value-moving operations are paused.",
		}),
	}

	m.registry.MustRegister(m.operations, m.totalDeposits, m.custodied, m.paused)
	return m
}

// ObserveOperation учитывает завершение операции op с результатом result.
func (m *Metrics) ObserveOperation(op, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
}

// SetState обновляет показатели резерва.
func (m *Metrics) SetState(st model.State) {
	if m == nil {
		return
	}
	m.totalDeposits.Set(float64(st.TotalDeposits))
	m.custodied.Set(float64(st.Custodied))
	if st.Paused {
		m.paused.Set(1)
	} else {
		m.paused.Set(0)
	}
}

// Handler возвращает HTTP-обработчик для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
