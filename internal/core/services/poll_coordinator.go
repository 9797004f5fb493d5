package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/metrics"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultProbeTimeout = 2 * time.Second
)

type BannerLevel string

const (
	BannerInfo    BannerLevel = "info"
	BannerSuccess BannerLevel = "success"
	BannerWarning BannerLevel = "warning"
	BannerError   BannerLevel = "error"
)

// Banner is the single user-facing side effect the coordinator produces.
// Owning surfaces decide how to render it (toast, log line, ws frame).
// Detail carries the trainer's raw error text when a job failed; Message
// is always ready to show as-is.
type Banner struct {
	Level   BannerLevel `json:"level"`
	Message string      `json:"message"`
	TaskID  string      `json:"task_id"`
	Detail  string      `json:"detail,omitempty"`
}

// WatchHooks are the callbacks a surface wires into its coordinator. All
// fields are optional; nil hooks are skipped. Hooks run synchronously on
// the polling goroutine, so they must not block; they may read the
// registry but must not call PollNow.
type WatchHooks struct {
	// OnStatusChange fires after every non-terminal reconciliation and
	// for informational banners such as "stop requested" or a probe
	// failure warning.
	OnStatusChange func(task domain.Task, banner Banner)
	// OnTerminal fires exactly once when a task reaches COMPLETED,
	// FAILED or STOPPED, before the task leaves the registry.
	OnTerminal func(task domain.Task, banner Banner)
	// OnRefresh fires after a COMPLETED task has been removed, so list
	// surfaces can re-query their backing data.
	OnRefresh func(taskType domain.TaskType)
	// OnAuthFailure fires when the trainer rejects the console's
	// credentials; callers typically redirect to a login flow.
	OnAuthFailure func(taskID string, err error)
}

// taskPoll is the per-task timer handle. Probes are numbered at issue
// time; reconciliation runs under mu and discards any answer older than
// the newest one already applied, so a slow response can never overwrite
// a newer one even when a manual refresh overlaps a tick.
type taskPoll struct {
	taskType domain.TaskType
	ctx      context.Context
	cancel   context.CancelFunc
	seq      atomic.Uint64
	mu       sync.Mutex
	applied  uint64
}

// PollCoordinator watches a set of tasks for one surface: every tracked
// task gets its own periodic probe against the trainer, and every answer
// is reconciled into the shared TaskRegistry. Several coordinators may
// watch the same task at once; each owns only its own timers.
//
// Terminal statuses stop the timer and remove the task from the registry.
// A failed probe stops the timer but leaves the task in place, because
// the job may well still be running server-side.
type PollCoordinator struct {
	registry     *TaskRegistry
	trainer      ports.TrainerClient
	logger       *logger.Logger
	hooks        WatchHooks
	types        []domain.TaskType
	typeSet      map[domain.TaskType]bool
	interval     time.Duration
	probeTimeout time.Duration

	mu      sync.Mutex
	polls   map[string]*taskPoll
	current string
}

type PollCoordinatorConfig struct {
	Registry *TaskRegistry
	Trainer  ports.TrainerClient
	Logger   *logger.Logger
	Hooks    WatchHooks
	// Types the coordinator owns on Restore. Empty means all types
	// (an overview surface).
	Types        []domain.TaskType
	Interval     time.Duration
	ProbeTimeout time.Duration
}

func NewPollCoordinator(cfg PollCoordinatorConfig) *PollCoordinator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	typeSet := make(map[domain.TaskType]bool, len(cfg.Types))
	for _, t := range cfg.Types {
		typeSet[t] = true
	}
	return &PollCoordinator{
		registry:     cfg.Registry,
		trainer:      cfg.Trainer,
		logger:       log,
		hooks:        cfg.Hooks,
		types:        cfg.Types,
		typeSet:      typeSet,
		interval:     interval,
		probeTimeout: probeTimeout,
		polls:        make(map[string]*taskPoll),
	}
}

// ==================== Tracking ====================

// Track starts the periodic probe for a task. Calling it for a task that
// is already tracked starts no second timer; it only marks the task as
// the surface's current one.
func (c *PollCoordinator) Track(taskID string, taskType domain.TaskType) {
	if taskID == "" {
		return
	}

	c.mu.Lock()
	if _, exists := c.polls[taskID]; exists {
		c.current = taskID
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	tk := &taskPoll{taskType: taskType, ctx: ctx, cancel: cancel}
	c.polls[taskID] = tk
	c.current = taskID
	c.mu.Unlock()

	c.logger.Debugw("tracking task", "task_id", taskID, "type", taskType)
	go c.run(tk, taskID)
}

// Restore picks up every registry task of the coordinator's owned types,
// oldest first, so the most recently registered one ends up current.
// Safe to call repeatedly; already-tracked tasks get no second timer.
func (c *PollCoordinator) Restore() {
	tasks := c.ownedTasks()
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	for _, task := range tasks {
		c.Track(task.ID, task.Type)
	}
}

func (c *PollCoordinator) ownedTasks() []domain.Task {
	if len(c.types) == 0 {
		return c.registry.GetActiveTasks()
	}
	var out []domain.Task
	for _, t := range c.types {
		out = append(out, c.registry.GetActiveTasksByType(t)...)
	}
	return out
}

// StopTracking cancels the task's timer immediately. A probe already in
// flight is not interrupted; its late answer is discarded. The task stays
// in the registry.
func (c *PollCoordinator) StopTracking(taskID string) {
	c.mu.Lock()
	tk, ok := c.polls[taskID]
	if ok {
		delete(c.polls, taskID)
	}
	c.mu.Unlock()

	if ok {
		tk.cancel()
		c.logger.Debugw("stopped tracking task", "task_id", taskID)
	}
}

// StopAll tears down every timer, typically when the owning surface
// unmounts. Registry entries are left untouched.
func (c *PollCoordinator) StopAll() {
	c.mu.Lock()
	polls := c.polls
	c.polls = make(map[string]*taskPoll)
	c.current = ""
	c.mu.Unlock()

	for _, tk := range polls {
		tk.cancel()
	}
}

func (c *PollCoordinator) IsTracking(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.polls[taskID]
	return ok
}

func (c *PollCoordinator) TrackedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.polls)
}

// CurrentTaskID returns the task a single-task surface should display:
// the most recently tracked one, cleared when that task is stopped.
func (c *PollCoordinator) CurrentTaskID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *PollCoordinator) clearCurrent(taskID string) {
	c.mu.Lock()
	if c.current == taskID {
		c.current = ""
	}
	c.mu.Unlock()
}

// ==================== Manual Paths ====================

// RequestStop asks the trainer to halt a task. On acknowledgement the
// task stays tracked; teardown happens when a later probe observes
// STOPPED, because only the trainer knows when the job actually halts.
func (c *PollCoordinator) RequestStop(ctx context.Context, taskID string) error {
	task, ok := c.registry.GetTask(taskID)
	if !ok {
		return ErrTaskNotFound
	}

	if err := c.trainer.StopTask(ctx, taskID); err != nil {
		if errors.Is(err, ports.ErrTrainerUnauthorized) {
			c.logger.Errorw("stop request rejected, credentials invalid", "task_id", taskID)
			c.emitAuthFailure(taskID, err)
			return err
		}
		c.logger.Errorw("stop request failed", "task_id", taskID, "error", err)
		c.emitStatusChange(task, Banner{
			Level:   BannerError,
			TaskID:  taskID,
			Message: fmt.Sprintf("could not stop %s; the job may still be running", bannerLabel(task)),
		})
		return ErrStopFailed
	}

	c.logger.Infow("stop requested", "task_id", taskID, "type", task.Type)
	c.emitStatusChange(task, Banner{
		Level:   BannerInfo,
		TaskID:  taskID,
		Message: fmt.Sprintf("stop requested for %s; waiting for the trainer to halt it", bannerLabel(task)),
	})
	return nil
}

// PollNow issues one immediate probe for a tracked task, outside the
// regular tick. Late answers from overlapping probes are discarded by
// the per-task sequence guard.
func (c *PollCoordinator) PollNow(taskID string) error {
	c.mu.Lock()
	tk, ok := c.polls[taskID]
	c.mu.Unlock()
	if !ok {
		return ErrTaskNotTracked
	}
	c.pollOnce(tk, taskID)
	return nil
}

// ==================== Polling Loop ====================

func (c *PollCoordinator) run(tk *taskPoll, taskID string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-tk.ctx.Done():
			return
		case <-ticker.C:
			if tk.ctx.Err() != nil {
				return
			}
			c.pollOnce(tk, taskID)
		}
	}
}

// pollOnce issues a single status probe and reconciles the answer into
// the registry, following the contract in the package documentation:
// the registry is updated first, then the returned status decides
// whether the task keeps polling or is torn down.
func (c *PollCoordinator) pollOnce(tk *taskPoll, taskID string) {
	seq := tk.seq.Add(1)

	probeCtx, cancel := context.WithTimeout(tk.ctx, c.probeTimeout)
	start := time.Now()
	report, err := c.trainer.TaskStatus(probeCtx, taskID)
	cancel()

	if tk.ctx.Err() != nil {
		// Tracking was torn down while the probe was in flight; the
		// answer, good or bad, is discarded.
		return
	}

	if err != nil {
		c.handleProbeError(tk, taskID, err)
		return
	}
	metrics.RecordPoll(tk.taskType, metrics.OutcomeOK, time.Since(start))

	tk.mu.Lock()
	defer tk.mu.Unlock()
	if seq <= tk.applied {
		c.logger.Debugw("discarding stale status response", "task_id", taskID, "seq", seq)
		return
	}
	tk.applied = seq

	status := domain.TaskStatus(report.Status)
	c.registry.UpdateTaskStatus(taskID, status)

	task, ok := c.registry.GetTask(taskID)
	if !ok {
		// Another coordinator already observed a terminal status and
		// removed the entry; drop our timer without resurrecting it.
		c.StopTracking(taskID)
		return
	}

	if !status.Terminal() {
		c.emitStatusChange(task, Banner{
			Level:   BannerInfo,
			TaskID:  taskID,
			Message: fmt.Sprintf("%s is %s", bannerLabel(task), strings.ToLower(string(status))),
		})
		return
	}

	c.finishTask(tk, task, report.ErrorMessage)
}

func (c *PollCoordinator) handleProbeError(tk *taskPoll, taskID string, err error) {
	if errors.Is(err, ports.ErrTrainerUnauthorized) {
		metrics.RecordPoll(tk.taskType, metrics.OutcomeUnauthorized, 0)
		c.StopTracking(taskID)
		c.logger.Errorw("trainer rejected credentials, polling stopped",
			"task_id", taskID, "type", tk.taskType)
		c.emitAuthFailure(taskID, err)
		return
	}

	metrics.RecordPoll(tk.taskType, metrics.OutcomeError, 0)
	c.StopTracking(taskID)
	c.logger.Warnw("status probe failed, polling stopped",
		"task_id", taskID, "type", tk.taskType, "error", err)

	// The probe failing says nothing about the job itself, so the task
	// stays in the registry; the user can re-open the page to resume
	// watching it.
	task, ok := c.registry.GetTask(taskID)
	if !ok {
		task = domain.Task{ID: taskID, Type: tk.taskType}
	}
	c.emitStatusChange(task, Banner{
		Level:   BannerWarning,
		TaskID:  taskID,
		Message: fmt.Sprintf("could not check status of %s; the job may still be running", bannerLabel(task)),
	})
}

// finishTask tears down a task that reached a terminal status: timer
// stopped, terminal hook fired, entry removed from the registry.
func (c *PollCoordinator) finishTask(tk *taskPoll, task domain.Task, errorMessage string) {
	c.StopTracking(task.ID)

	banner := terminalBanner(task, errorMessage)
	c.logger.Infow("task finished",
		"task_id", task.ID, "type", task.Type, "status", task.Status)
	c.emitTerminal(task, banner)

	c.registry.RemoveTask(task.ID)
	metrics.RecordTaskFinished(task.Type, task.Status)

	switch task.Status {
	case domain.TaskStatusCompleted:
		c.emitRefresh(task.Type)
	case domain.TaskStatusStopped:
		c.clearCurrent(task.ID)
	}
}

func terminalBanner(task domain.Task, errorMessage string) Banner {
	label := bannerLabel(task)
	switch task.Status {
	case domain.TaskStatusCompleted:
		return Banner{Level: BannerSuccess, TaskID: task.ID,
			Message: fmt.Sprintf("%s completed successfully", label)}
	case domain.TaskStatusFailed:
		msg := fmt.Sprintf("%s failed", label)
		if errorMessage != "" {
			msg = fmt.Sprintf("%s failed: %s", label, errorMessage)
		}
		return Banner{Level: BannerError, TaskID: task.ID, Message: msg, Detail: errorMessage}
	default: // STOPPED
		return Banner{Level: BannerWarning, TaskID: task.ID,
			Message: fmt.Sprintf("%s was stopped", label)}
	}
}

// bannerLabel prefers the human description; the zero Task (a probe
// failure for an id missing from the registry) falls back to the id.
func bannerLabel(task domain.Task) string {
	if task.Description != "" {
		return task.Description
	}
	if task.ID != "" {
		return "task " + task.ID
	}
	return "task"
}

// ==================== Hook Emission ====================

func (c *PollCoordinator) emitStatusChange(task domain.Task, banner Banner) {
	if c.hooks.OnStatusChange != nil {
		c.hooks.OnStatusChange(task, banner)
	}
}

func (c *PollCoordinator) emitTerminal(task domain.Task, banner Banner) {
	if c.hooks.OnTerminal != nil {
		c.hooks.OnTerminal(task, banner)
	}
}

func (c *PollCoordinator) emitRefresh(taskType domain.TaskType) {
	if c.hooks.OnRefresh != nil {
		c.hooks.OnRefresh(taskType)
	}
}

func (c *PollCoordinator) emitAuthFailure(taskID string, err error) {
	if c.hooks.OnAuthFailure != nil {
		c.hooks.OnAuthFailure(taskID, err)
	}
}
