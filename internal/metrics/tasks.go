package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_dispatched_total",
			Help: "Tasks created and published, by topic and outcome (ok/enqueue_failed).",
		},
		[]string{"topic", "outcome"},
	)

	tasksProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_processed_total",
			Help: "Tasks finished by workers, by topic and terminal status.",
		},
		[]string{"topic", "status"},
	)

	taskStoreErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "task_store_errors_total",
			Help: "Task store calls that failed, by operation.",
		},
		[]string{"op"},
	)

	taskDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_duration_seconds",
			Help:    "Worker time spent per task.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"topic"},
	)
)

func init() {
	register(tasksDispatchedTotal, tasksProcessedTotal, taskStoreErrorsTotal, taskDurationSeconds)
}

func IncTaskDispatched(topic, outcome string) {
	tasksDispatchedTotal.WithLabelValues(norm(topic), norm(outcome)).Inc()
}

func IncTaskProcessed(topic, status string) {
	tasksProcessedTotal.WithLabelValues(norm(topic), norm(status)).Inc()
}

func IncTaskStoreError(op string) {
	taskStoreErrorsTotal.WithLabelValues(norm(op)).Inc()
}

func ObserveTaskDuration(topic string, seconds float64) {
	taskDurationSeconds.WithLabelValues(norm(topic)).Observe(seconds)
}
