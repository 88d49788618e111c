// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "designgen_jobs_total",
			Help: "Total number of design jobs by terminal outcome",
		},
		[]string{"outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "designgen_job_duration_seconds",
			Help:    "Duration of design jobs from activation to terminal outcome",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"outcome"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "designgen_jobs_active",
			Help: "Number of jobs currently driving an editor instance",
		},
	)

	JobsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "designgen_jobs_queued",
			Help: "Number of jobs waiting for admission",
		},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "designgen_cache_evictions_total",
			Help: "Artifacts removed from the cache by reason",
		},
		[]string{"reason"},
	)

	EditorEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "designgen_editor_events_total",
			Help: "Inbound editor protocol events by kind",
		},
		[]string{"kind"},
	)
)
