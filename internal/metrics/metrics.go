// Package metrics provides Prometheus metrics for the training console.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mltrack/backend/internal/domain"
)

// Outcomes of a single trainer status probe.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomeUnauthorized = "unauthorized"
)

var (
	ActiveTasks = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mltrack_active_tasks",
			Help: "Current number of tasks in the registry by type",
		},
		[]string{"type"},
	)
	LaunchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mltrack_launches_total",
			Help: "Total number of jobs the trainer accepted",
		},
		[]string{"type"},
	)
	StatusPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mltrack_status_polls_total",
			Help: "Total number of status probes issued against the trainer",
		},
		[]string{"type", "outcome"},
	)
	StatusPollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mltrack_status_poll_duration_seconds",
			Help:    "Latency of trainer status probes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
	TasksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mltrack_tasks_finished_total",
			Help: "Total number of tasks that reached a terminal status",
		},
		[]string{"type", "status"},
	)
	StopRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mltrack_stop_requests_total",
			Help: "Total number of manual stop commands sent to the trainer",
		},
		[]string{"type", "outcome"},
	)
	WatchSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mltrack_watch_sessions",
			Help: "Number of live websocket watch sessions",
		},
	)
)

func RecordLaunch(taskType domain.TaskType) {
	LaunchesTotal.WithLabelValues(string(taskType)).Inc()
}

func RecordPoll(taskType domain.TaskType, outcome string, duration time.Duration) {
	StatusPolls.WithLabelValues(string(taskType), outcome).Inc()
	if outcome == OutcomeOK {
		StatusPollDuration.WithLabelValues(string(taskType)).Observe(duration.Seconds())
	}
}

func RecordTaskFinished(taskType domain.TaskType, status domain.TaskStatus) {
	TasksFinished.WithLabelValues(string(taskType), string(status)).Inc()
}

func RecordStopRequest(taskType domain.TaskType, outcome string) {
	StopRequests.WithLabelValues(string(taskType), outcome).Inc()
}

func UpdateActiveTasks(counts map[domain.TaskType]int) {
	ActiveTasks.Reset()
	for _, t := range domain.AllTaskTypes() {
		ActiveTasks.WithLabelValues(string(t)).Set(float64(counts[t]))
	}
	for t, n := range counts {
		if !t.Valid() {
			ActiveTasks.WithLabelValues(string(t)).Set(float64(n))
		}
	}
}

func WatchSessionOpened() {
	WatchSessions.Inc()
}

func WatchSessionClosed() {
	WatchSessions.Dec()
}
