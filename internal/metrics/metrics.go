package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the mailer's Prometheus collectors.
type Metrics struct {
	SendsTotal      *prometheus.CounterVec
	SendDuration    prometheus.Histogram
	SlowSends       prometheus.Counter
	QueueSize       prometheus.Gauge
	TickDuration    prometheus.Histogram
	TickPanics      prometheus.Counter
	AdmissionsTotal *prometheus.CounterVec
	EventsDropped   prometheus.CounterFunc
}

// New registers the collectors with reg. dropped may be nil.
func New(reg prometheus.Registerer, dropped func() float64) *Metrics {
	f := promauto.With(reg)
	m := &Metrics{
		SendsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailer_sends_total",
				Help: "Recipient send attempts by outcome",
			},
			[]string{"outcome"},
		),
		SendDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailer_send_duration_seconds",
			Help:    "Time spent handing one message to the transport",
			Buckets: prometheus.DefBuckets,
		}),
		SlowSends: f.NewCounter(prometheus.CounterOpts{
			Name: "mailer_slow_sends_total",
			Help: "Sends that took longer than the slow threshold",
		}),
		QueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "mailer_queue_size",
			Help: "Campaigns currently in the dispatch queue",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailer_tick_duration_seconds",
			Help:    "Duration of one dispatcher pass over the queue",
			Buckets: prometheus.DefBuckets,
		}),
		TickPanics: f.NewCounter(prometheus.CounterOpts{
			Name: "mailer_tick_panics_total",
			Help: "Dispatcher units that panicked and were recovered",
		}),
		AdmissionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailer_admissions_total",
				Help: "Campaigns admitted to the queue by source",
			},
			[]string{"source"},
		),
	}
	if dropped != nil {
		m.EventsDropped = f.NewCounterFunc(prometheus.CounterOpts{
			Name: "mailer_events_dropped_total",
			Help: "Events discarded because a subscriber buffer was full",
		}, dropped)
	}
	return m
}

// Discard returns collectors registered nowhere, for tests and tools.
func Discard() *Metrics {
	return New(prometheus.NewRegistry(), nil)
}
