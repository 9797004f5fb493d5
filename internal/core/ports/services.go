package ports

import (
	"context"
	"errors"
	"io"

	"github.com/mltrack/backend/internal/domain"
)

// Trainer contract errors. Implementations of TrainerClient must return
// ErrTrainerUnauthorized (possibly wrapped) when the trainer rejects the
// console's credentials, so callers can tell an expired token apart from
// an unreachable backend or a failed job.
var (
	ErrTrainerUnauthorized = errors.New("trainer: unauthorized")
)

// StatusReport is one answer from the trainer about a running task.
// Status is passed through verbatim, including values this console does
// not know about.
type StatusReport struct {
	Status       string
	ErrorMessage string
}

// ModelInfo is one entry of the trainer's model catalog, passed through
// for the retrain picker.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Algorithm string `json:"algorithm"`
	TrainedAt string `json:"trained_at"`
}

// TrainerClient talks to the training backend. The console holds no job
// state of its own beyond the task registry; everything here is a thin
// remote call.
type TrainerClient interface {
	StartTraining(ctx context.Context, input StartTrainingInput) (string, error)
	StartCustomTraining(ctx context.Context, input StartCustomTrainingInput) (string, error)
	Retrain(ctx context.Context, input RetrainInput) (string, error)
	TaskStatus(ctx context.Context, taskID string) (StatusReport, error)
	StopTask(ctx context.Context, taskID string) error
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

type StartTrainingInput struct {
	Algorithm string
	Dataset   string
	Options   map[string]interface{}
}

type StartCustomTrainingInput struct {
	Script  string
	Dataset string
	Options map[string]interface{}
}

type RetrainInput struct {
	ModelID string
	Custom  bool
	Dataset string
	Options map[string]interface{}
}

type TrainingService interface {
	LaunchTraining(ctx context.Context, input StartTrainingInput) (*domain.Task, error)
	LaunchCustomTraining(ctx context.Context, input StartCustomTrainingInput) (*domain.Task, error)
	LaunchRetrain(ctx context.Context, input RetrainInput) (*domain.Task, error)
	StopTask(ctx context.Context, taskID string) error
	GetTask(taskID string) (*domain.Task, error)
	ActiveTasks(taskType domain.TaskType) []domain.Task
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

type DatasetService interface {
	UploadDataset(ctx context.Context, input UploadDatasetInput) (*domain.Dataset, error)
	GetDatasets(ctx context.Context) ([]domain.Dataset, error)
	GetDatasetByID(ctx context.Context, id uint) (*domain.Dataset, error)
	UpdateDataset(ctx context.Context, id uint, input UpdateDatasetInput) (*domain.Dataset, error)
	DeleteDataset(ctx context.Context, id uint) error
	OpenDataset(ctx context.Context, id uint) (*domain.Dataset, io.ReadCloser, error)
}

type UploadDatasetInput struct {
	Name        string
	Format      string
	Description string
	Size        int64
	Content     io.Reader
}

type UpdateDatasetInput struct {
	Name        *string
	Description *string
}
