package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/metrics"
)

// TaskTracker is the slice of the watch machinery the launch flow needs:
// start polling a freshly launched task, and route manual stops.
type TaskTracker interface {
	Track(taskID string, taskType domain.TaskType)
	RequestStop(ctx context.Context, taskID string) error
}

type trainingService struct {
	registry *TaskRegistry
	trainer  ports.TrainerClient
	tracker  TaskTracker
	runs     ports.RunRepository
	datasets ports.DatasetRepository
	events   *EventRecorder
	logger   *logger.Logger
}

type TrainingServiceConfig struct {
	Registry *TaskRegistry
	Trainer  ports.TrainerClient
	Tracker  TaskTracker
	// Runs is optional; when nil no history rows are written.
	Runs ports.RunRepository
	// Datasets is optional; when set, launches referencing a dataset by
	// name are checked against the catalog before the trainer is called.
	Datasets ports.DatasetRepository
	// Events is optional; when set, launches and stop requests land in
	// the activity feed.
	Events *EventRecorder
	Logger *logger.Logger
}

func NewTrainingService(cfg TrainingServiceConfig) ports.TrainingService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &trainingService{
		registry: cfg.Registry,
		trainer:  cfg.Trainer,
		tracker:  cfg.Tracker,
		runs:     cfg.Runs,
		datasets: cfg.Datasets,
		events:   cfg.Events,
		logger:   log,
	}
}

func (s *trainingService) LaunchTraining(ctx context.Context, input ports.StartTrainingInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Algorithm) == "" || strings.TrimSpace(input.Dataset) == "" {
		return nil, ErrTrainingInvalidInput
	}
	if err := s.checkDataset(ctx, input.Dataset); err != nil {
		return nil, err
	}

	taskID, err := s.trainer.StartTraining(ctx, input)
	if err != nil {
		return nil, s.launchError(err, "algorithm", input.Algorithm)
	}

	description := fmt.Sprintf("%s on %s", input.Algorithm, input.Dataset)
	params := domain.JSONB{"algorithm": input.Algorithm, "dataset": input.Dataset}
	return s.register(ctx, taskID, domain.TaskTypeWekaTraining, description, params, input.Options), nil
}

func (s *trainingService) LaunchCustomTraining(ctx context.Context, input ports.StartCustomTrainingInput) (*domain.Task, error) {
	if strings.TrimSpace(input.Script) == "" {
		return nil, ErrTrainingInvalidInput
	}
	if input.Dataset != "" {
		if err := s.checkDataset(ctx, input.Dataset); err != nil {
			return nil, err
		}
	}

	taskID, err := s.trainer.StartCustomTraining(ctx, input)
	if err != nil {
		return nil, s.launchError(err, "script", input.Script)
	}

	description := input.Script
	if input.Dataset != "" {
		description = fmt.Sprintf("%s on %s", input.Script, input.Dataset)
	}
	params := domain.JSONB{"script": input.Script, "dataset": input.Dataset}
	return s.register(ctx, taskID, domain.TaskTypeCustomTraining, description, params, input.Options), nil
}

func (s *trainingService) LaunchRetrain(ctx context.Context, input ports.RetrainInput) (*domain.Task, error) {
	if strings.TrimSpace(input.ModelID) == "" {
		return nil, ErrTrainingInvalidInput
	}
	if input.Dataset != "" {
		if err := s.checkDataset(ctx, input.Dataset); err != nil {
			return nil, err
		}
	}

	taskID, err := s.trainer.Retrain(ctx, input)
	if err != nil {
		return nil, s.launchError(err, "model_id", input.ModelID)
	}

	taskType := domain.TaskTypeWekaRetrain
	if input.Custom {
		taskType = domain.TaskTypeCustomRetrain
	}
	description := fmt.Sprintf("retrain of model %s", input.ModelID)
	params := domain.JSONB{"model_id": input.ModelID, "custom": input.Custom, "dataset": input.Dataset}
	return s.register(ctx, taskID, taskType, description, params, input.Options), nil
}

// checkDataset rejects launches that name a dataset missing from the
// catalog. With no catalog configured every name passes; the trainer is
// then the only judge of whether it can resolve the data.
func (s *trainingService) checkDataset(ctx context.Context, name string) error {
	if s.datasets == nil {
		return nil
	}
	dataset, err := s.datasets.GetByName(ctx, name)
	if err != nil {
		s.logger.Warnw("dataset lookup failed, allowing launch", "dataset", name, "error", err)
		return nil
	}
	if dataset == nil {
		return ErrDatasetNotFound
	}
	return nil
}

// register puts the accepted job into the registry, starts its watch
// timer and writes the history row. The trainer has already committed to
// the job at this point, so none of these steps can refuse it.
func (s *trainingService) register(ctx context.Context, taskID string, taskType domain.TaskType, description string, params domain.JSONB, options map[string]interface{}) *domain.Task {
	s.registry.AddTask(domain.Task{
		ID:          taskID,
		Type:        taskType,
		Status:      domain.TaskStatusPending,
		Description: description,
	})
	s.tracker.Track(taskID, taskType)
	metrics.RecordLaunch(taskType)
	s.logger.Infow("job launched", "task_id", taskID, "type", taskType, "description", description)

	if s.runs != nil {
		if len(options) > 0 {
			params["options"] = options
		}
		run := &domain.TrainingRun{
			TaskID:      taskID,
			Type:        taskType,
			Status:      domain.TaskStatusPending,
			Description: description,
			Params:      params,
		}
		if err := s.runs.Create(ctx, run); err != nil {
			// History is best-effort; a failed write never blocks a launch.
			s.logger.Warnw("failed to record training run", "task_id", taskID, "error", err)
		}
	}

	task, _ := s.registry.GetTask(taskID)
	s.events.TaskLaunched(ctx, task)
	return &task
}

func (s *trainingService) launchError(err error, key, value string) error {
	if errors.Is(err, ports.ErrTrainerUnauthorized) {
		s.logger.Errorw("launch rejected, credentials invalid", key, value)
		return err
	}
	s.logger.Errorw("launch failed", key, value, "error", err)
	return ErrLaunchFailed
}

func (s *trainingService) StopTask(ctx context.Context, taskID string) error {
	task, ok := s.registry.GetTask(taskID)
	if !ok {
		return ErrTaskNotFound
	}

	if err := s.tracker.RequestStop(ctx, taskID); err != nil {
		metrics.RecordStopRequest(task.Type, metrics.OutcomeError)
		return err
	}
	metrics.RecordStopRequest(task.Type, metrics.OutcomeOK)
	s.events.StopRequested(ctx, task)
	return nil
}

func (s *trainingService) GetTask(taskID string) (*domain.Task, error) {
	task, ok := s.registry.GetTask(taskID)
	if !ok {
		return nil, ErrTaskNotFound
	}
	return &task, nil
}

func (s *trainingService) ActiveTasks(taskType domain.TaskType) []domain.Task {
	if taskType == "" {
		return s.registry.GetActiveTasks()
	}
	return s.registry.GetActiveTasksByType(taskType)
}

// ListModels passes the trainer's model catalog through for the retrain
// picker. The console keeps no model state of its own.
func (s *trainingService) ListModels(ctx context.Context) ([]ports.ModelInfo, error) {
	models, err := s.trainer.ListModels(ctx)
	if err != nil {
		if errors.Is(err, ports.ErrTrainerUnauthorized) {
			return nil, err
		}
		s.logger.Errorw("model list failed", "error", err)
		return nil, ErrModelListFailed
	}
	return models, nil
}
