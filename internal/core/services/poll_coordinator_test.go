package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTrainer scripts trainer answers per task. statusFn receives the
// 1-based call number so tests can return different answers per poll.
type fakeTrainer struct {
	mu        sync.Mutex
	calls     map[string]int
	statusFn  func(taskID string, call int) (ports.StatusReport, error)
	stopFn    func(taskID string) error
	stopped   []string
	models    []ports.ModelInfo
	modelsErr error
}

func newFakeTrainer() *fakeTrainer {
	return &fakeTrainer{calls: make(map[string]int)}
}

func (f *fakeTrainer) TaskStatus(ctx context.Context, taskID string) (ports.StatusReport, error) {
	f.mu.Lock()
	f.calls[taskID]++
	call := f.calls[taskID]
	fn := f.statusFn
	f.mu.Unlock()

	if fn == nil {
		return ports.StatusReport{Status: string(domain.TaskStatusRunning)}, nil
	}
	return fn(taskID, call)
}

func (f *fakeTrainer) StopTask(ctx context.Context, taskID string) error {
	f.mu.Lock()
	f.stopped = append(f.stopped, taskID)
	fn := f.stopFn
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(taskID)
}

func (f *fakeTrainer) StartTraining(ctx context.Context, input ports.StartTrainingInput) (string, error) {
	return "task-weka", nil
}

func (f *fakeTrainer) StartCustomTraining(ctx context.Context, input ports.StartCustomTrainingInput) (string, error) {
	return "task-custom", nil
}

func (f *fakeTrainer) Retrain(ctx context.Context, input ports.RetrainInput) (string, error) {
	return "task-retrain", nil
}

func (f *fakeTrainer) ListModels(ctx context.Context) ([]ports.ModelInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models, f.modelsErr
}

func (f *fakeTrainer) statusCalls(taskID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[taskID]
}

func (f *fakeTrainer) stopCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

// bannerRecorder collects hook emissions across goroutines. Its add
// method matches the OnStatusChange hook signature.
type bannerRecorder struct {
	mu      sync.Mutex
	banners []Banner
}

func (b *bannerRecorder) add(_ domain.Task, banner Banner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banners = append(b.banners, banner)
}

func (b *bannerRecorder) all() []Banner {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Banner(nil), b.banners...)
}

func waitSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal(msg)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPollCoordinator_HappyPath(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		if call == 1 {
			return ports.StatusReport{Status: "RUNNING"}, nil
		}
		return ports.StatusReport{Status: "COMPLETED"}, nil
	}

	statuses := &bannerRecorder{}
	terminals := &bannerRecorder{}
	terminalDone := make(chan struct{}, 4)
	refreshed := make(chan domain.TaskType, 4)

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnStatusChange: statuses.add,
			OnTerminal: func(task domain.Task, banner Banner) {
				terminals.add(task, banner)
				terminalDone <- struct{}{}
			},
			OnRefresh: func(taskType domain.TaskType) { refreshed <- taskType },
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusPending))
	c.Track("t1", domain.TaskTypeWekaTraining)

	waitSignal(t, terminalDone, "task never reached a terminal status")

	_, ok := registry.GetTask("t1")
	assert.False(t, ok, "terminal task must leave the registry")
	assert.False(t, c.IsTracking("t1"))

	terminalBanners := terminals.all()
	require.Len(t, terminalBanners, 1, "success notification must fire exactly once")
	assert.Equal(t, BannerSuccess, terminalBanners[0].Level)

	select {
	case taskType := <-refreshed:
		assert.Equal(t, domain.TaskTypeWekaTraining, taskType)
	case <-time.After(time.Second):
		t.Fatal("refresh hook never fired for the completed task")
	}

	// The RUNNING reconciliation surfaced before the terminal one.
	var sawRunning bool
	for _, banner := range statuses.all() {
		if banner.Level == BannerInfo && strings.Contains(banner.Message, "running") {
			sawRunning = true
		}
	}
	assert.True(t, sawRunning, "expected an informational running banner")

	// No further probes once the task is torn down.
	calls := trainer.statusCalls("t1")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, trainer.statusCalls("t1"))
}

func TestPollCoordinator_AuthFailureHaltsPolling(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{}, fmt.Errorf("%w: status=401", ports.ErrTrainerUnauthorized)
	}

	authErrs := make(chan error, 4)
	terminalCount := 0

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnTerminal:    func(domain.Task, Banner) { terminalCount++ },
			OnAuthFailure: func(taskID string, err error) { authErrs <- err },
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t2", domain.TaskTypeCustomTraining, domain.TaskStatusRunning))
	c.Track("t2", domain.TaskTypeCustomTraining)

	select {
	case err := <-authErrs:
		assert.True(t, errors.Is(err, ports.ErrTrainerUnauthorized),
			"auth failures must stay distinguishable from generic ones")
	case <-time.After(5 * time.Second):
		t.Fatal("auth failure hook never fired")
	}

	// Polling halts, but the task is not removed.
	waitFor(t, func() bool { return !c.IsTracking("t2") }, "polling did not stop")
	_, ok := registry.GetTask("t2")
	assert.True(t, ok, "auth failure must not remove the task")
	assert.Equal(t, 0, terminalCount)

	calls := trainer.statusCalls("t2")
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, calls, trainer.statusCalls("t2"), "no further probes after an auth failure")
}

func TestPollCoordinator_ProbeFailureKeepsTask(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{}, errors.New("connection refused")
	}

	statuses := &bannerRecorder{}
	warned := make(chan struct{}, 4)
	terminalCount := 0

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnStatusChange: func(task domain.Task, banner Banner) {
				statuses.add(task, banner)
				if banner.Level == BannerWarning {
					warned <- struct{}{}
				}
			},
			OnTerminal: func(domain.Task, Banner) { terminalCount++ },
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t3", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	c.Track("t3", domain.TaskTypeWekaTraining)

	waitSignal(t, warned, "probe failure warning never surfaced")

	// A failed probe is not a failed job.
	_, ok := registry.GetTask("t3")
	assert.True(t, ok, "probe failure must not remove the task")
	assert.False(t, c.IsTracking("t3"))
	assert.Equal(t, 0, terminalCount)
}

func TestPollCoordinator_FailedIncludesErrorDetail(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{Status: "FAILED", ErrorMessage: "out of memory on worker 3"}, nil
	}

	terminals := &bannerRecorder{}
	terminalDone := make(chan struct{}, 4)
	refreshCount := 0

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnTerminal: func(task domain.Task, banner Banner) {
				terminals.add(task, banner)
				terminalDone <- struct{}{}
			},
			OnRefresh: func(domain.TaskType) { refreshCount++ },
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t4", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	c.Track("t4", domain.TaskTypeWekaTraining)

	waitSignal(t, terminalDone, "failed task never surfaced a terminal banner")

	banners := terminals.all()
	require.Len(t, banners, 1)
	assert.Equal(t, BannerError, banners[0].Level)
	assert.Contains(t, banners[0].Message, "out of memory on worker 3")
	assert.Equal(t, "out of memory on worker 3", banners[0].Detail)

	_, ok := registry.GetTask("t4")
	assert.False(t, ok)
	assert.Equal(t, 0, refreshCount, "refresh fires only for completed tasks")
}

func TestPollCoordinator_StoppedClearsCurrent(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{Status: "STOPPED"}, nil
	}

	terminals := &bannerRecorder{}
	terminalDone := make(chan struct{}, 4)

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnTerminal: func(task domain.Task, banner Banner) {
				terminals.add(task, banner)
				terminalDone <- struct{}{}
			},
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t5", domain.TaskTypeCustomRetrain, domain.TaskStatusRunning))
	c.Track("t5", domain.TaskTypeCustomRetrain)
	assert.Equal(t, "t5", c.CurrentTaskID())

	waitSignal(t, terminalDone, "stopped task never surfaced a terminal banner")

	banners := terminals.all()
	require.Len(t, banners, 1)
	assert.Equal(t, BannerWarning, banners[0].Level)

	_, ok := registry.GetTask("t5")
	assert.False(t, ok)
	assert.Equal(t, "", c.CurrentTaskID(), "stopped task must clear the current selection")
}

func TestPollCoordinator_UnknownStatusPassthrough(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{Status: "ARCHIVING"}, nil
	}

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
	})
	defer c.StopAll()

	registry.AddTask(newTask("t6", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	c.Track("t6", domain.TaskTypeWekaTraining)

	require.NoError(t, c.PollNow("t6"))

	task, ok := registry.GetTask("t6")
	require.True(t, ok, "unknown statuses are not terminal")
	assert.Equal(t, domain.TaskStatus("ARCHIVING"), task.Status)
	assert.True(t, c.IsTracking("t6"))
}

func TestTrack_Idempotent(t *testing.T) {
	registry := NewTaskRegistry()
	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Interval: time.Hour,
	})
	defer c.StopAll()

	c.Track("t1", domain.TaskTypeWekaTraining)
	c.Track("t1", domain.TaskTypeWekaTraining)
	assert.Equal(t, 1, c.TrackedCount())

	c.Track("t2", domain.TaskTypeWekaTraining)
	assert.Equal(t, 2, c.TrackedCount())
	assert.Equal(t, "t2", c.CurrentTaskID())

	// Re-tracking an existing task only moves the current marker.
	c.Track("t1", domain.TaskTypeWekaTraining)
	assert.Equal(t, 2, c.TrackedCount())
	assert.Equal(t, "t1", c.CurrentTaskID())
}

func TestRestore(t *testing.T) {
	registry := NewTaskRegistry()

	older := newTask("t-old", domain.TaskTypeWekaTraining, domain.TaskStatusRunning)
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer := newTask("t-new", domain.TaskTypeWekaTraining, domain.TaskStatusRunning)
	newer.CreatedAt = time.Now()
	other := newTask("t-other", domain.TaskTypeCustomTraining, domain.TaskStatusRunning)

	registry.AddTask(older)
	registry.AddTask(newer)
	registry.AddTask(other)

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Types:    []domain.TaskType{domain.TaskTypeWekaTraining},
		Interval: time.Hour,
	})
	defer c.StopAll()

	c.Restore()
	assert.Equal(t, 2, c.TrackedCount(), "restore must only pick up owned types")
	assert.False(t, c.IsTracking("t-other"))
	assert.Equal(t, "t-new", c.CurrentTaskID(), "most recent task becomes current")

	// Restoring again must not double any timer.
	c.Restore()
	assert.Equal(t, 2, c.TrackedCount())
}

func TestRestore_AllTypesWhenUnconfigured(t *testing.T) {
	registry := NewTaskRegistry()
	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	registry.AddTask(newTask("t2", domain.TaskTypeCustomRetrain, domain.TaskStatusRunning))

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Interval: time.Hour,
	})
	defer c.StopAll()

	c.Restore()
	assert.Equal(t, 2, c.TrackedCount())
}

func TestPollCoordinator_IndependentTypes(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		if taskID == "t-custom" && call >= 2 {
			return ports.StatusReport{Status: "COMPLETED"}, nil
		}
		return ports.StatusReport{Status: "RUNNING"}, nil
	}

	terminalDone := make(chan string, 4)

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: 10 * time.Millisecond,
		Hooks: WatchHooks{
			OnTerminal: func(task domain.Task, banner Banner) { terminalDone <- task.ID },
		},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t-custom", domain.TaskTypeCustomTraining, domain.TaskStatusRunning))
	registry.AddTask(newTask("t-retrain", domain.TaskTypeWekaRetrain, domain.TaskStatusRunning))

	custom := registry.GetActiveTasksByType(domain.TaskTypeCustomTraining)
	require.Len(t, custom, 1)
	assert.Equal(t, "t-custom", custom[0].ID)
	retrain := registry.GetActiveTasksByType(domain.TaskTypeWekaRetrain)
	require.Len(t, retrain, 1)
	assert.Equal(t, "t-retrain", retrain[0].ID)

	c.Track("t-custom", domain.TaskTypeCustomTraining)
	c.Track("t-retrain", domain.TaskTypeWekaRetrain)

	select {
	case id := <-terminalDone:
		assert.Equal(t, "t-custom", id)
	case <-time.After(5 * time.Second):
		t.Fatal("custom training never completed")
	}

	// Terminating one task leaves the other's timer running.
	assert.False(t, c.IsTracking("t-custom"))
	assert.True(t, c.IsTracking("t-retrain"))
	_, ok := registry.GetTask("t-retrain")
	assert.True(t, ok)

	calls := trainer.statusCalls("t-retrain")
	waitFor(t, func() bool { return trainer.statusCalls("t-retrain") > calls },
		"surviving task stopped polling")
}

func TestRequestStop_Acknowledged(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	statuses := &bannerRecorder{}

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
		Hooks:    WatchHooks{OnStatusChange: statuses.add},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	c.Track("t1", domain.TaskTypeWekaTraining)

	require.NoError(t, c.RequestStop(context.Background(), "t1"))

	assert.Equal(t, []string{"t1"}, trainer.stopCalls())

	// The acknowledgement alone tears nothing down; a later poll has to
	// observe STOPPED first.
	assert.True(t, c.IsTracking("t1"))
	_, ok := registry.GetTask("t1")
	assert.True(t, ok)

	banners := statuses.all()
	require.Len(t, banners, 1)
	assert.Equal(t, BannerInfo, banners[0].Level)
	assert.Contains(t, banners[0].Message, "stop requested")
}

func TestRequestStop_Failure(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.stopFn = func(taskID string) error { return errors.New("boom") }
	statuses := &bannerRecorder{}

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
		Hooks:    WatchHooks{OnStatusChange: statuses.add},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))

	err := c.RequestStop(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrStopFailed)

	// The job may still be running, so the task survives the failure.
	_, ok := registry.GetTask("t1")
	assert.True(t, ok)

	banners := statuses.all()
	require.Len(t, banners, 1)
	assert.Equal(t, BannerError, banners[0].Level)
}

func TestRequestStop_AuthFailure(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.stopFn = func(taskID string) error {
		return fmt.Errorf("%w: status=403", ports.ErrTrainerUnauthorized)
	}
	authErrs := make(chan error, 1)

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
		Hooks:    WatchHooks{OnAuthFailure: func(taskID string, err error) { authErrs <- err }},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))

	err := c.RequestStop(context.Background(), "t1")
	assert.True(t, errors.Is(err, ports.ErrTrainerUnauthorized))

	select {
	case hookErr := <-authErrs:
		assert.True(t, errors.Is(hookErr, ports.ErrTrainerUnauthorized))
	case <-time.After(time.Second):
		t.Fatal("auth failure hook never fired")
	}
}

func TestRequestStop_UnknownTask(t *testing.T) {
	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: NewTaskRegistry(),
		Trainer:  newFakeTrainer(),
		Interval: time.Hour,
	})
	defer c.StopAll()

	err := c.RequestStop(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestPollNow(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()

	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
	})
	defer c.StopAll()

	assert.ErrorIs(t, c.PollNow("t1"), ErrTaskNotTracked)

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusPending))
	c.Track("t1", domain.TaskTypeWekaTraining)

	require.NoError(t, c.PollNow("t1"))
	assert.Equal(t, 1, trainer.statusCalls("t1"))

	task, _ := registry.GetTask("t1")
	assert.Equal(t, domain.TaskStatusRunning, task.Status)
}

func TestPollCoordinator_StaleResponseDiscarded(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()

	release := make(chan struct{})
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		if call == 1 {
			<-release
			return ports.StatusReport{Status: "PENDING"}, nil
		}
		return ports.StatusReport{Status: "RUNNING"}, nil
	}

	statuses := &bannerRecorder{}
	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry:     registry,
		Trainer:      trainer,
		Interval:     time.Hour,
		ProbeTimeout: time.Minute,
		Hooks:        WatchHooks{OnStatusChange: statuses.add},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusPending))
	c.Track("t1", domain.TaskTypeWekaTraining)

	// First probe goes out and hangs inside the trainer.
	firstDone := make(chan struct{})
	go func() {
		_ = c.PollNow("t1")
		close(firstDone)
	}()
	waitFor(t, func() bool { return trainer.statusCalls("t1") == 1 }, "first probe never issued")

	// Second probe overtakes it and applies RUNNING.
	require.NoError(t, c.PollNow("t1"))
	task, _ := registry.GetTask("t1")
	require.Equal(t, domain.TaskStatusRunning, task.Status)

	// The older answer resolves late and must be discarded.
	close(release)
	waitSignal(t, firstDone, "first probe never resolved")

	task, _ = registry.GetTask("t1")
	assert.Equal(t, domain.TaskStatusRunning, task.Status,
		"a stale response must not overwrite a newer one")
	assert.Len(t, statuses.all(), 1, "the discarded response must not surface a banner")
}

func TestStopTracking_DiscardsInFlightProbe(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()

	release := make(chan struct{})
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		<-release
		return ports.StatusReport{Status: "RUNNING"}, nil
	}

	statuses := &bannerRecorder{}
	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry:     registry,
		Trainer:      trainer,
		Interval:     time.Hour,
		ProbeTimeout: time.Minute,
		Hooks:        WatchHooks{OnStatusChange: statuses.add},
	})
	defer c.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusPending))
	c.Track("t1", domain.TaskTypeWekaTraining)

	probeDone := make(chan struct{})
	go func() {
		_ = c.PollNow("t1")
		close(probeDone)
	}()
	waitFor(t, func() bool { return trainer.statusCalls("t1") == 1 }, "probe never issued")

	c.StopTracking("t1")
	close(release)
	waitSignal(t, probeDone, "probe never resolved")

	// The answer arrived after teardown and is dropped wholesale.
	task, _ := registry.GetTask("t1")
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Empty(t, statuses.all())
}

func TestStopAll(t *testing.T) {
	registry := NewTaskRegistry()
	c := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Interval: time.Hour,
	})

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	registry.AddTask(newTask("t2", domain.TaskTypeCustomTraining, domain.TaskStatusRunning))
	c.Track("t1", domain.TaskTypeWekaTraining)
	c.Track("t2", domain.TaskTypeCustomTraining)

	c.StopAll()

	assert.Equal(t, 0, c.TrackedCount())
	assert.Equal(t, "", c.CurrentTaskID())
	assert.Len(t, registry.GetActiveTasks(), 2, "unmounting a surface keeps registry entries")
}

func TestMultipleCoordinators_SameTask(t *testing.T) {
	registry := NewTaskRegistry()
	trainer := newFakeTrainer()
	trainer.statusFn = func(taskID string, call int) (ports.StatusReport, error) {
		return ports.StatusReport{Status: "COMPLETED"}, nil
	}

	winnerTerminals := 0
	loserTerminals := 0

	winner := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
		Hooks:    WatchHooks{OnTerminal: func(domain.Task, Banner) { winnerTerminals++ }},
	})
	defer winner.StopAll()
	loser := NewPollCoordinator(PollCoordinatorConfig{
		Registry: registry,
		Trainer:  trainer,
		Interval: time.Hour,
		Hooks:    WatchHooks{OnTerminal: func(domain.Task, Banner) { loserTerminals++ }},
	})
	defer loser.StopAll()

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	winner.Track("t1", domain.TaskTypeWekaTraining)
	loser.Track("t1", domain.TaskTypeWekaTraining)

	// The winner observes the terminal status and removes the task.
	require.NoError(t, winner.PollNow("t1"))
	assert.Equal(t, 1, winnerTerminals)
	_, ok := registry.GetTask("t1")
	assert.False(t, ok)

	// The loser's late probe finds the entry gone and stands down
	// without resurrecting it or firing its own terminal hook.
	require.NoError(t, loser.PollNow("t1"))
	assert.Equal(t, 0, loserTerminals)
	assert.False(t, loser.IsTracking("t1"))
	_, ok = registry.GetTask("t1")
	assert.False(t, ok)

	assert.ErrorIs(t, loser.PollNow("t1"), ErrTaskNotTracked)
}
