package db

import (
	"context"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

// EventRepoStub keeps the activity feed alive as log lines when the
// console runs without a database.
type EventRepoStub struct {
	logger *logger.Logger
}

func NewEventRepoStub(log *logger.Logger) ports.EventRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventRepoStub{logger: log}
}

func (r *EventRepoStub) Create(ctx context.Context, event *domain.TaskEvent) error {
	r.logger.Infow("task event",
		"type", event.Type,
		"status", event.Status,
		"message", event.Message,
		"task_id", event.TaskID,
		"task_type", event.TaskType,
	)
	return nil
}

func (r *EventRepoStub) GetByID(ctx context.Context, id uint) (*domain.TaskEvent, error) {
	return nil, nil
}

func (r *EventRepoStub) GetByTask(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	return nil, nil
}

func (r *EventRepoStub) GetAll(ctx context.Context, limit int) ([]domain.TaskEvent, error) {
	return nil, nil
}

func (r *EventRepoStub) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
