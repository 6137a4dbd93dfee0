// Package metrics provides Prometheus instrumentation for the bridge control plane.
package metrics

import (
	"strconv"
	"time"

	"github.com/cuongbtq/onprem-bridge/internal/bridge/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StatsSource reports the current job backlog
type StatsSource interface {
	Stats() store.Stats
}

// Metrics holds all Prometheus metric collectors for the bridge.
type Metrics struct {
	JobsEnqueuedTotal        *prometheus.CounterVec
	JobsPulledTotal          prometheus.Counter
	JobsCompletedTotal       prometheus.Counter
	SignatureRejectionsTotal prometheus.Counter
	JobCompletionSeconds     prometheus.Histogram
}

// New creates and registers the bridge metrics on reg. Backlog gauges are
// computed from stats at scrape time.
func New(reg prometheus.Registerer, stats StatsSource) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		JobsEnqueuedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bridge_jobs_enqueued_total",
			Help: "Total number of enqueue requests, partitioned by resource and idempotent reuse.",
		}, []string{"resource", "reused"}),

		JobsPulledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_jobs_pulled_total",
			Help: "Total number of jobs handed to an agent.",
		}),

		JobsCompletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_jobs_completed_total",
			Help: "Total number of accepted job results.",
		}),

		SignatureRejectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "bridge_result_signature_rejections_total",
			Help: "Total number of job results rejected for a bad signature.",
		}),

		JobCompletionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "bridge_job_completion_seconds",
			Help:    "Time from job creation to accepted result.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
	}

	if stats != nil {
		statuses := []struct {
			label string
			count func(store.Stats) int
		}{
			{"queued", func(s store.Stats) int { return s.Queued }},
			{"processing", func(s store.Stats) int { return s.Processing }},
			{"completed", func(s store.Stats) int { return s.Completed }},
		}
		for _, st := range statuses {
			count := st.count
			factory.NewGaugeFunc(prometheus.GaugeOpts{
				Name:        "bridge_jobs",
				Help:        "Current number of jobs by status.",
				ConstLabels: prometheus.Labels{"status": st.label},
			}, func() float64 {
				return float64(count(stats.Stats()))
			})
		}

		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bridge_oldest_queued_age_seconds",
			Help: "Age of the oldest queued job, 0 when nothing is queued.",
		}, func() float64 {
			s := stats.Stats()
			if s.OldestQueuedAgeMs == nil {
				return 0
			}
			return float64(*s.OldestQueuedAgeMs) / 1000
		})
	}

	return m
}

// JobEnqueued counts an enqueue request
func (m *Metrics) JobEnqueued(resource string, reused bool) {
	if m == nil {
		return
	}
	m.JobsEnqueuedTotal.WithLabelValues(resource, strconv.FormatBool(reused)).Inc()
}

// JobPulled counts a job handed to an agent
func (m *Metrics) JobPulled() {
	if m == nil {
		return
	}
	m.JobsPulledTotal.Inc()
}

// JobCompleted counts an accepted result and observes its latency
func (m *Metrics) JobCompleted(createdAt, completedAt time.Time) {
	if m == nil {
		return
	}
	m.JobsCompletedTotal.Inc()
	if latency := completedAt.Sub(createdAt); latency >= 0 {
		m.JobCompletionSeconds.Observe(latency.Seconds())
	}
}

// SignatureRejected counts a result rejected for a bad signature
func (m *Metrics) SignatureRejected() {
	if m == nil {
		return
	}
	m.SignatureRejectionsTotal.Inc()
}
