package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTracker struct {
	mu      sync.Mutex
	tracked []string
	stops   []string
	stopErr error
}

func (f *fakeTracker) Track(taskID string, taskType domain.TaskType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, taskID)
}

func (f *fakeTracker) RequestStop(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, taskID)
	return f.stopErr
}

type finishCall struct {
	taskID       string
	status       domain.TaskStatus
	errorMessage string
}

type fakeRunRepo struct {
	mu           sync.Mutex
	created      []domain.TrainingRun
	finishes     []finishCall
	createErr    error
	statsErr     error
	pruned       int64
	pruneCutoffs []time.Time
}

func (f *fakeRunRepo) Create(ctx context.Context, run *domain.TrainingRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, *run)
	return nil
}

func (f *fakeRunRepo) GetByTaskID(ctx context.Context, taskID string) (*domain.TrainingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.created {
		if f.created[i].TaskID == taskID {
			run := f.created[i]
			return &run, nil
		}
	}
	return nil, errors.New("record not found")
}

func (f *fakeRunRepo) GetAll(ctx context.Context, limit int) ([]domain.TrainingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]domain.TrainingRun(nil), f.created...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunRepo) Finish(ctx context.Context, taskID string, status domain.TaskStatus, errorMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishes = append(f.finishes, finishCall{taskID, status, errorMessage})
	return nil
}

func (f *fakeRunRepo) Stats(ctx context.Context, since time.Time) (*domain.RunStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	stats := &domain.RunStats{
		TotalRuns: int64(len(f.created)),
		ByStatus:  make(map[string]int64),
		ByType:    make(map[string]int64),
		Since:     since,
	}
	for i := range f.created {
		stats.ByStatus[string(f.created[i].Status)]++
		stats.ByType[string(f.created[i].Type)]++
	}
	return stats, nil
}

func (f *fakeRunRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneCutoffs = append(f.pruneCutoffs, cutoff)
	return f.pruned, nil
}

func newTestTrainingService(trainer ports.TrainerClient) (ports.TrainingService, *TaskRegistry, *fakeTracker, *fakeRunRepo) {
	registry := NewTaskRegistry()
	tracker := &fakeTracker{}
	runs := &fakeRunRepo{}
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  trainer,
		Tracker:  tracker,
		Runs:     runs,
	})
	return svc, registry, tracker, runs
}

func TestLaunchTraining(t *testing.T) {
	svc, registry, tracker, runs := newTestTrainingService(newFakeTrainer())

	task, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "LogisticRegression",
		Dataset:   "iris.csv",
	})
	require.NoError(t, err)
	require.NotNil(t, task)

	assert.Equal(t, "task-weka", task.ID)
	assert.Equal(t, domain.TaskTypeWekaTraining, task.Type)
	assert.Equal(t, domain.TaskStatusPending, task.Status)
	assert.Equal(t, "LogisticRegression on iris.csv", task.Description)

	stored, ok := registry.GetTask("task-weka")
	require.True(t, ok)
	assert.Equal(t, domain.TaskStatusPending, stored.Status)

	assert.Equal(t, []string{"task-weka"}, tracker.tracked)

	require.Len(t, runs.created, 1)
	assert.Equal(t, "task-weka", runs.created[0].TaskID)
	assert.Equal(t, "LogisticRegression", runs.created[0].Params["algorithm"])
}

func TestLaunchTraining_InvalidInput(t *testing.T) {
	svc, _, tracker, _ := newTestTrainingService(newFakeTrainer())

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{Algorithm: "  "})
	assert.ErrorIs(t, err, ErrTrainingInvalidInput)
	assert.Empty(t, tracker.tracked)
}

func TestLaunchTraining_TrainerDown(t *testing.T) {
	trainer := newFakeTrainer()
	failing := &launchFailingTrainer{fakeTrainer: trainer, err: errors.New("dial tcp: refused")}
	svc, registry, _, _ := newTestTrainingService(failing)

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.Empty(t, registry.GetActiveTasks())
}

func TestLaunchTraining_TrainerUnauthorized(t *testing.T) {
	trainer := newFakeTrainer()
	failing := &launchFailingTrainer{
		fakeTrainer: trainer,
		err:         fmt.Errorf("%w: status=401", ports.ErrTrainerUnauthorized),
	}
	svc, _, _, _ := newTestTrainingService(failing)

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	assert.True(t, errors.Is(err, ports.ErrTrainerUnauthorized),
		"credential rejections must pass through unchanged")
}

// launchFailingTrainer fails every launch call but polls normally.
type launchFailingTrainer struct {
	*fakeTrainer
	err error
}

func (f *launchFailingTrainer) StartTraining(ctx context.Context, input ports.StartTrainingInput) (string, error) {
	return "", f.err
}

func (f *launchFailingTrainer) StartCustomTraining(ctx context.Context, input ports.StartCustomTrainingInput) (string, error) {
	return "", f.err
}

func (f *launchFailingTrainer) Retrain(ctx context.Context, input ports.RetrainInput) (string, error) {
	return "", f.err
}

func TestLaunchCustomTraining(t *testing.T) {
	svc, registry, tracker, _ := newTestTrainingService(newFakeTrainer())

	task, err := svc.LaunchCustomTraining(context.Background(), ports.StartCustomTrainingInput{
		Script:  "train.py",
		Dataset: "mnist",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskTypeCustomTraining, task.Type)
	assert.Equal(t, "train.py on mnist", task.Description)
	_, ok := registry.GetTask("task-custom")
	assert.True(t, ok)
	assert.Equal(t, []string{"task-custom"}, tracker.tracked)
}

func TestLaunchCustomTraining_MissingScript(t *testing.T) {
	svc, _, _, _ := newTestTrainingService(newFakeTrainer())

	_, err := svc.LaunchCustomTraining(context.Background(), ports.StartCustomTrainingInput{Dataset: "mnist"})
	assert.ErrorIs(t, err, ErrTrainingInvalidInput)
}

func TestLaunchRetrain(t *testing.T) {
	svc, _, _, runs := newTestTrainingService(newFakeTrainer())

	task, err := svc.LaunchRetrain(context.Background(), ports.RetrainInput{ModelID: "model-7"})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeWekaRetrain, task.Type)

	custom, err := svc.LaunchRetrain(context.Background(), ports.RetrainInput{ModelID: "model-8", Custom: true})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskTypeCustomRetrain, custom.Type)

	require.Len(t, runs.created, 2)
	assert.Equal(t, "model-7", runs.created[0].Params["model_id"])
}

func TestLaunch_HistoryWriteFailureDoesNotBlock(t *testing.T) {
	registry := NewTaskRegistry()
	tracker := &fakeTracker{}
	runs := &fakeRunRepo{createErr: errors.New("db down")}
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Tracker:  tracker,
		Runs:     runs,
	})

	task, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	require.NoError(t, err, "a failed history write must not fail the launch")
	_, ok := registry.GetTask(task.ID)
	assert.True(t, ok)
}

func TestLaunch_WithoutHistory(t *testing.T) {
	registry := NewTaskRegistry()
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Tracker:  &fakeTracker{},
	})

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	assert.NoError(t, err)
}

func TestServiceStopTask(t *testing.T) {
	svc, registry, tracker, _ := newTestTrainingService(newFakeTrainer())

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))

	require.NoError(t, svc.StopTask(context.Background(), "t1"))
	assert.Equal(t, []string{"t1"}, tracker.stops)
}

func TestServiceStopTask_NotFound(t *testing.T) {
	svc, _, _, _ := newTestTrainingService(newFakeTrainer())

	err := svc.StopTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestServiceStopTask_TrackerError(t *testing.T) {
	registry := NewTaskRegistry()
	tracker := &fakeTracker{stopErr: ErrStopFailed}
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Tracker:  tracker,
	})

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))

	err := svc.StopTask(context.Background(), "t1")
	assert.ErrorIs(t, err, ErrStopFailed)
}

func TestServiceGetTask(t *testing.T) {
	svc, registry, _, _ := newTestTrainingService(newFakeTrainer())

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))

	task, err := svc.GetTask("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)

	_, err = svc.GetTask("missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestServiceActiveTasks(t *testing.T) {
	svc, registry, _, _ := newTestTrainingService(newFakeTrainer())

	registry.AddTask(newTask("t1", domain.TaskTypeWekaTraining, domain.TaskStatusRunning))
	registry.AddTask(newTask("t2", domain.TaskTypeCustomTraining, domain.TaskStatusRunning))

	all := svc.ActiveTasks("")
	assert.Len(t, all, 2)

	weka := svc.ActiveTasks(domain.TaskTypeWekaTraining)
	require.Len(t, weka, 1)
	assert.Equal(t, "t1", weka[0].ID)
}

// fakeDatasetRepo only backs the catalog lookups the launch path makes.
type fakeDatasetRepo struct {
	byName  map[string]*domain.Dataset
	nameErr error
}

func (f *fakeDatasetRepo) Create(ctx context.Context, d *domain.Dataset) error { return nil }

func (f *fakeDatasetRepo) GetByID(ctx context.Context, id uint) (*domain.Dataset, error) {
	return nil, errors.New("record not found")
}

func (f *fakeDatasetRepo) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	if f.nameErr != nil {
		return nil, f.nameErr
	}
	return f.byName[name], nil
}

func (f *fakeDatasetRepo) GetByNameWithDeleted(ctx context.Context, name string) (*domain.Dataset, error) {
	return f.GetByName(ctx, name)
}

func (f *fakeDatasetRepo) GetAll(ctx context.Context) ([]domain.Dataset, error) { return nil, nil }
func (f *fakeDatasetRepo) Update(ctx context.Context, d *domain.Dataset) error  { return nil }
func (f *fakeDatasetRepo) Restore(ctx context.Context, d *domain.Dataset) error { return nil }
func (f *fakeDatasetRepo) Delete(ctx context.Context, id uint) error            { return nil }

func newCatalogTrainingService(catalog *fakeDatasetRepo) (ports.TrainingService, *TaskRegistry) {
	registry := NewTaskRegistry()
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Tracker:  &fakeTracker{},
		Datasets: catalog,
	})
	return svc, registry
}

func TestLaunchTraining_UnknownDataset(t *testing.T) {
	svc, registry := newCatalogTrainingService(&fakeDatasetRepo{})

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "missing.csv",
	})
	assert.ErrorIs(t, err, ErrDatasetNotFound)
	assert.Empty(t, registry.GetActiveTasks(), "a rejected launch must not reach the registry")
}

func TestLaunchTraining_KnownDataset(t *testing.T) {
	catalog := &fakeDatasetRepo{byName: map[string]*domain.Dataset{
		"weather.arff": {Name: "weather.arff"},
	}}
	svc, _ := newCatalogTrainingService(catalog)

	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	assert.NoError(t, err)
}

func TestLaunchTraining_CatalogDownAllowsLaunch(t *testing.T) {
	svc, _ := newCatalogTrainingService(&fakeDatasetRepo{nameErr: errors.New("db down")})

	// A broken catalog must not take launches down with it.
	_, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	assert.NoError(t, err)
}

func TestLaunchCustomTraining_NoDatasetSkipsCatalog(t *testing.T) {
	svc, _ := newCatalogTrainingService(&fakeDatasetRepo{})

	// Scripts may carry their data inline; only a named dataset is
	// checked.
	_, err := svc.LaunchCustomTraining(context.Background(), ports.StartCustomTrainingInput{Script: "train.py"})
	assert.NoError(t, err)

	_, err = svc.LaunchCustomTraining(context.Background(), ports.StartCustomTrainingInput{
		Script:  "train.py",
		Dataset: "missing",
	})
	assert.ErrorIs(t, err, ErrDatasetNotFound)
}

func TestLaunchAndStop_RecordEvents(t *testing.T) {
	registry := NewTaskRegistry()
	events := &fakeEventRepo{}
	svc := NewTrainingService(TrainingServiceConfig{
		Registry: registry,
		Trainer:  newFakeTrainer(),
		Tracker:  &fakeTracker{},
		Events:   NewEventRecorder(events, nil),
	})

	task, err := svc.LaunchTraining(context.Background(), ports.StartTrainingInput{
		Algorithm: "J48",
		Dataset:   "weather.arff",
	})
	require.NoError(t, err)
	require.NoError(t, svc.StopTask(context.Background(), task.ID))

	recorded := events.all()
	require.Len(t, recorded, 2)
	assert.Equal(t, domain.EventTypeTaskLaunched, recorded[0].Type)
	assert.Equal(t, domain.EventTypeStopRequested, recorded[1].Type)
	assert.Equal(t, task.ID, recorded[0].TaskID)
}

func TestListModels(t *testing.T) {
	trainer := newFakeTrainer()
	trainer.models = []ports.ModelInfo{{ID: "m1", Name: "spam-filter", Algorithm: "NaiveBayes"}}
	svc, _, _, _ := newTestTrainingService(trainer)

	models, err := svc.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "m1", models[0].ID)
}

func TestListModels_Unauthorized(t *testing.T) {
	trainer := newFakeTrainer()
	trainer.modelsErr = fmt.Errorf("%w: status=401", ports.ErrTrainerUnauthorized)
	svc, _, _, _ := newTestTrainingService(trainer)

	_, err := svc.ListModels(context.Background())
	assert.True(t, errors.Is(err, ports.ErrTrainerUnauthorized))
}

func TestListModels_TrainerDown(t *testing.T) {
	trainer := newFakeTrainer()
	trainer.modelsErr = errors.New("dial tcp: refused")
	svc, _, _, _ := newTestTrainingService(trainer)

	_, err := svc.ListModels(context.Background())
	assert.ErrorIs(t, err, ErrModelListFailed)
}
