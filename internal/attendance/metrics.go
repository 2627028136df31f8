package attendance

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts recorded events. A nil *Metrics is valid and records nothing.
type Metrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the attendance collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_events_total",
			Help: "Attendance events by outcome and origin.",
		}, []string{"outcome", "origin"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_record_seconds",
			Help:    "Time spent applying one attendance event.",
			Buckets: prometheus.DefBuckets,
		}, []string{"origin"}),
	}
}

func (m *Metrics) observe(outcome string, origin Origin, took time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome, string(origin)).Inc()
	m.duration.WithLabelValues(string(origin)).Observe(took.Seconds())
}
