package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 迁移相关的 prometheus 指标
type Metrics struct {
	tables   *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics registerer 为 nil 时注册到默认 registry
func NewMetrics(name string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		tables: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_migration_tables_total",
				Help: "Total number of migrated tables by strategy",
			},
			[]string{"strategy"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: name + "_migrations_total",
				Help: "Total number of migrations by status",
			},
			[]string{"status"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    name + "_migration_duration_seconds",
				Help:    "Duration of migrations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
		),
	}

	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	registerer.MustRegister(m.tables, m.runs, m.duration)

	return m
}

func (m *Metrics) TablesCounter(strategy Strategy) prometheus.Counter {
	return m.tables.WithLabelValues(strategy.String())
}

func (m *Metrics) RunsCounter(status string) prometheus.Counter {
	return m.runs.WithLabelValues(status)
}
