// Package metrics экспортирует счетчики пакетов и статей в формате Prometheus.
package metrics

import (
	"newsrelay/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "newsrelay"

// Metrics хранит метрики конвейера. Регистрируется в переданном реестре,
// глобальный реестр не используется.
type Metrics struct {
	batches       *prometheus.CounterVec
	articles      *prometheus.CounterVec
	batchDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		batches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Number of batches by final state.",
		}, []string{"state"}),
		articles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_total",
			Help:      "Number of processed articles by outcome and publish form.",
		}, []string{"status", "form"}),
		batchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a batch from fetch to the last publish.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful batch.",
		}),
	}
}

// ObserveBatch учитывает итог пакета.
func (m *Metrics) ObserveBatch(result *domain.BatchResult) {
	m.batches.WithLabelValues(string(result.State)).Inc()
	m.batchDuration.Observe(result.Duration().Seconds())
	for _, o := range result.Outcomes {
		form := string(o.Form)
		if form == "" {
			form = "none"
		}
		m.articles.WithLabelValues(string(o.Status), form).Inc()
	}
	if result.Succeeded() {
		m.lastSuccess.Set(float64(result.FinishedAt.Unix()))
	}
}
