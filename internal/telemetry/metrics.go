package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в глобальном реестре Prometheus
// и отдаются на /metrics.
var (
	// JobsSubmitted — принятые job.
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptflow_jobs_submitted_total",
		Help: "Total workflow jobs accepted by the queue",
	}, []string{"backend"})

	// JobsFinished — завершённые job по итоговому статусу.
	JobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptflow_jobs_finished_total",
		Help: "Total workflow jobs that reached a terminal status",
	}, []string{"status"})

	// JobRetries — повторные попытки job.
	JobRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptflow_job_retries_total",
		Help: "Total job attempts scheduled after a failure",
	})

	// JobsActive — job, выполняющиеся прямо сейчас.
	JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "promptflow_jobs_active",
		Help: "Number of jobs currently being processed",
	})

	// TaskDuration — длительность выполнения задач.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "promptflow_task_duration_seconds",
		Help:    "Duration of single task executions",
		Buckets: []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60},
	}, []string{"type", "status"})

	// BroadcastDropped — события, не доставленные медленным подписчикам.
	BroadcastDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "promptflow_broadcast_dropped_events_total",
		Help: "Progress events dropped because a subscriber buffer was full",
	})

	// HTTPRequests — запросы к API.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "promptflow_http_requests_total",
		Help: "Total HTTP requests handled by the API",
	}, []string{"method", "status"})
)
