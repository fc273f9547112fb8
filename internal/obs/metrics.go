package obs

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	AdmissionsTotal *prometheus.CounterVec
	FanoutTotal     *prometheus.CounterVec
	FanoutDuration  prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AdmissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talk_broadcast_admissions_total",
				Help: "Broadcast admission verdicts by result and reason",
			},
			[]string{"result", "reason"},
		),
		FanoutTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "talk_broadcast_fanout_total",
				Help: "Per-recipient fan-out outcomes",
			},
			[]string{"outcome"},
		),
		FanoutDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "talk_broadcast_fanout_duration_seconds",
				Help:    "Duration of a full broadcast fan-out",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(m.AdmissionsTotal, m.FanoutTotal, m.FanoutDuration)
	return m
}

// Fan-out outcome labels.
const (
	FanoutCreated   = "created"
	FanoutDuplicate = "duplicate"
	FanoutFailed    = "failed"
)
