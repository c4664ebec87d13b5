package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	records      *prometheus.CounterVec
	ticks        *prometheus.CounterVec
	tickDuration prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		records: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_records_total",
				Help: "Posts handled by the extraction pipeline, by outcome.",
			},
			[]string{"status", "reason"},
		),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_ticks_total",
				Help: "Pipeline ticks by result.",
			},
			[]string{"result"},
		),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pipeline_tick_duration_seconds",
			Help:    "Wall time of pipeline ticks that ran.",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		}),
	}
	for _, c := range []prometheus.Collector{m.records, m.ticks, m.tickDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeReport(r BatchReport) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues("ok").Inc()
	m.tickDuration.Observe(float64(r.ElapsedMs) / 1000)
	for _, o := range r.Outcomes {
		m.records.WithLabelValues(string(o.Status), string(o.Reason)).Inc()
	}
}

func (m *Metrics) observeTick(result string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result).Inc()
}
