package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExamJobsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_jobs_submitted_total",
			Help: "Total number of exam processing jobs accepted by the API",
		},
		[]string{"locale"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type", "source"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_job_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 40, 60, 90},
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	RecommendationAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_api_attempts_total",
			Help: "Recommendation API attempts by outcome",
		},
		[]string{"outcome"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recommendation_api_duration_seconds",
			Help:    "Recommendation API attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	ScoringAnomalies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exam_scoring_anomalies_total",
			Help: "Answers skipped during scoring",
		},
		[]string{"kind"},
	)

	StaleJobsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "exam_stale_jobs_failed_total",
			Help: "Jobs failed by the stale-job sweeper",
		},
	)
)
