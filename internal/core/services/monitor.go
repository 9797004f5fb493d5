package services

import (
	"context"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/metrics"
)

// Notifier delivers terminal outcomes to operators out of band, e.g. by
// email. Implementations must be safe for concurrent use.
type Notifier interface {
	TaskFinished(ctx context.Context, task domain.Task, message, detail string) error
}

// Monitor is the server's own always-on watch surface. It runs one
// coordinator over all task types so every job is observed even when no
// browser session is open: terminal outcomes land in the run history,
// the activity feed and the operator's inbox, banners land in the log,
// and the active-task gauges stay current.
type Monitor struct {
	registry    *TaskRegistry
	coordinator *PollCoordinator
	runs        ports.RunRepository
	events      *EventRecorder
	notifier    Notifier
	logger      *logger.Logger
	unsubscribe func()
}

type MonitorConfig struct {
	Registry *TaskRegistry
	Trainer  ports.TrainerClient
	// Runs is optional; when nil terminal outcomes are only logged.
	Runs ports.RunRepository
	// Events is optional; when set, probe failures, auth failures and
	// terminal outcomes land in the activity feed.
	Events *EventRecorder
	// Notifier is optional; when set, terminal outcomes are delivered
	// out of band as well.
	Notifier     Notifier
	Logger       *logger.Logger
	Interval     time.Duration
	ProbeTimeout time.Duration
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	m := &Monitor{
		registry: cfg.Registry,
		runs:     cfg.Runs,
		events:   cfg.Events,
		notifier: cfg.Notifier,
		logger:   log,
	}
	m.coordinator = NewPollCoordinator(PollCoordinatorConfig{
		Registry:     cfg.Registry,
		Trainer:      cfg.Trainer,
		Logger:       cfg.Logger,
		Interval:     cfg.Interval,
		ProbeTimeout: cfg.ProbeTimeout,
		Hooks: WatchHooks{
			OnStatusChange: m.onStatusChange,
			OnTerminal:     m.onTerminal,
			OnAuthFailure:  m.onAuthFailure,
		},
	})
	m.unsubscribe = cfg.Registry.Subscribe(m.updateGauges)
	return m
}

// Start resumes watching whatever the registry already holds, e.g. after
// the watch loop was torn down and rebuilt.
func (m *Monitor) Start() {
	m.updateGauges()
	m.coordinator.Restore()
}

// Stop tears down all timers. Registry entries survive.
func (m *Monitor) Stop() {
	m.unsubscribe()
	m.coordinator.StopAll()
}

func (m *Monitor) Track(taskID string, taskType domain.TaskType) {
	m.coordinator.Track(taskID, taskType)
}

func (m *Monitor) RequestStop(ctx context.Context, taskID string) error {
	return m.coordinator.RequestStop(ctx, taskID)
}

// FinalizeRun closes the history row for a task that reached a terminal
// status. Any coordinator may report the same task; the repository update
// only touches rows not yet finished, so duplicates are harmless.
func (m *Monitor) FinalizeRun(task domain.Task, banner Banner) {
	if m.runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.runs.Finish(ctx, task.ID, task.Status, banner.Detail); err != nil {
		m.logger.Warnw("failed to finalize training run", "task_id", task.ID, "error", err)
	}
}

func (m *Monitor) onStatusChange(task domain.Task, banner Banner) {
	switch banner.Level {
	case BannerWarning:
		// The only warning on this hook is a failed status probe.
		m.logger.Warnw("task banner", "task_id", banner.TaskID, "level", banner.Level, "message", banner.Message)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		m.events.ProbeFailed(ctx, banner.TaskID, task.Type)
		cancel()
	case BannerError:
		m.logger.Warnw("task banner", "task_id", banner.TaskID, "level", banner.Level, "message", banner.Message)
	default:
		m.logger.Debugw("task banner", "task_id", banner.TaskID, "level", banner.Level, "message", banner.Message)
	}
}

func (m *Monitor) onTerminal(task domain.Task, banner Banner) {
	m.FinalizeRun(task, banner)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	m.events.TaskFinished(ctx, task, banner.Detail)
	cancel()

	if m.notifier != nil {
		// Hooks run on the polling goroutine; mail delivery must not
		// hold it up.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := m.notifier.TaskFinished(ctx, task, banner.Message, banner.Detail); err != nil {
				m.logger.Warnw("terminal notification failed", "task_id", task.ID, "error", err)
			}
		}()
	}
}

func (m *Monitor) onAuthFailure(taskID string, err error) {
	m.logger.Errorw("trainer credentials rejected, watching suspended for task",
		"task_id", taskID, "error", err)

	taskType := domain.TaskType("")
	if task, ok := m.registry.GetTask(taskID); ok {
		taskType = task.Type
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	m.events.AuthFailed(ctx, taskID, taskType)
	cancel()
}

func (m *Monitor) updateGauges() {
	metrics.UpdateActiveTasks(m.registry.CountsByType())
}
