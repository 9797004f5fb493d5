package ports

import (
	"context"
	"time"

	"github.com/mltrack/backend/internal/domain"
)

type RunRepository interface {
	Create(ctx context.Context, run *domain.TrainingRun) error
	GetByTaskID(ctx context.Context, taskID string) (*domain.TrainingRun, error)
	GetAll(ctx context.Context, limit int) ([]domain.TrainingRun, error)
	Finish(ctx context.Context, taskID string, status domain.TaskStatus, errorMessage string) error
	Stats(ctx context.Context, since time.Time) (*domain.RunStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type DatasetRepository interface {
	Create(ctx context.Context, dataset *domain.Dataset) error
	GetByID(ctx context.Context, id uint) (*domain.Dataset, error)
	GetByName(ctx context.Context, name string) (*domain.Dataset, error)
	GetByNameWithDeleted(ctx context.Context, name string) (*domain.Dataset, error)
	GetAll(ctx context.Context) ([]domain.Dataset, error)
	Update(ctx context.Context, dataset *domain.Dataset) error
	Restore(ctx context.Context, dataset *domain.Dataset) error
	Delete(ctx context.Context, id uint) error
}

type EventRepository interface {
	Create(ctx context.Context, event *domain.TaskEvent) error
	GetByID(ctx context.Context, id uint) (*domain.TaskEvent, error)
	GetByTask(ctx context.Context, taskID string) ([]domain.TaskEvent, error)
	GetAll(ctx context.Context, limit int) ([]domain.TaskEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (*domain.ConsoleSetting, error)
	Set(ctx context.Context, setting *domain.ConsoleSetting) error
	GetByCategory(ctx context.Context, category string) ([]domain.ConsoleSetting, error)
	GetAll(ctx context.Context) ([]domain.ConsoleSetting, error)
	Delete(ctx context.Context, key string) error
}
