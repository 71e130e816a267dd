package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsSubmittedTotal, jobsFinishedTotal, jobsRunning, stageDurationSeconds)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgen_jobs_submitted_total",
			Help: "Jobs accepted by the orchestrator, labeled by pipeline mode.",
		},
		[]string{"mode"},
	)

	jobsFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assetgen_jobs_finished_total",
			Help: "Jobs that reached a terminal status.",
		},
		[]string{"mode", "status"}, // 'succeeded', 'failed'
	)

	jobsRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assetgen_jobs_running",
		Help: "Jobs currently holding a worker slot.",
	})

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assetgen_stage_duration_seconds",
			Help:    "Wall time spent per pipeline stage.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)
)

func IncJobSubmitted(mode string) {
	jobsSubmittedTotal.WithLabelValues(norm(mode)).Inc()
}

func IncJobFinished(mode, status string) {
	jobsFinishedTotal.WithLabelValues(norm(mode), norm(status)).Inc()
}

// JobStarted marks a worker slot as taken and returns the release func.
func JobStarted() func() {
	jobsRunning.Inc()
	return jobsRunning.Dec
}

func ObserveStage(stage string, d time.Duration) {
	stageDurationSeconds.WithLabelValues(norm(stage)).Observe(d.Seconds())
}
