package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts pipeline events.
type Metrics struct {
	BinsFetched *prometheus.CounterVec
	BinsMissing *prometheus.CounterVec
	Renders     *prometheus.CounterVec
	Failures    *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg. A nil reg uses a
// private registry, which keeps tests and repeated construction safe.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		BinsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "pipeline",
			Name:      "bins_fetched_total",
			Help:      "Time-series bins fetched from the imagery gateway",
		}, []string{"gas"}),
		BinsMissing: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "pipeline",
			Name:      "bins_missing_total",
			Help:      "Time-series bins without imagery",
		}, []string{"gas"}),
		Renders: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "pipeline",
			Name:      "renders_total",
			Help:      "Maps rendered",
		}, []string{"kind"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "citytrace",
			Subsystem: "pipeline",
			Name:      "failures_total",
			Help:      "Pipeline operations that failed",
		}, []string{"operation"}),
	}
}
