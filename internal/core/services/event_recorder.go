package services

import (
	"context"
	"fmt"
	"time"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

// EventRecorder writes the activity feed. Every method is best-effort
// and safe on a nil recorder, so callers never have to guard the
// no-history configuration.
type EventRecorder struct {
	repo   ports.EventRepository
	logger *logger.Logger
}

func NewEventRecorder(repo ports.EventRepository, log *logger.Logger) *EventRecorder {
	if log == nil {
		log = logger.NewNop()
	}
	return &EventRecorder{repo: repo, logger: log}
}

func (r *EventRecorder) TaskLaunched(ctx context.Context, task domain.Task) {
	r.record(ctx, &domain.TaskEvent{
		Type:     domain.EventTypeTaskLaunched,
		Status:   domain.EventStatusSuccess,
		Message:  fmt.Sprintf("launched %s", task.Description),
		TaskID:   task.ID,
		TaskType: task.Type,
		Meta:     domain.JSONB{"status": string(task.Status)},
	})
}

func (r *EventRecorder) StopRequested(ctx context.Context, task domain.Task) {
	r.record(ctx, &domain.TaskEvent{
		Type:     domain.EventTypeStopRequested,
		Status:   domain.EventStatusPending,
		Message:  fmt.Sprintf("stop requested for %s", task.Description),
		TaskID:   task.ID,
		TaskType: task.Type,
	})
}

func (r *EventRecorder) ProbeFailed(ctx context.Context, taskID string, taskType domain.TaskType) {
	r.record(ctx, &domain.TaskEvent{
		Type:     domain.EventTypeProbeFailed,
		Status:   domain.EventStatusFailed,
		Message:  "status probe failed, task may still be running",
		TaskID:   taskID,
		TaskType: taskType,
	})
}

func (r *EventRecorder) AuthFailed(ctx context.Context, taskID string, taskType domain.TaskType) {
	r.record(ctx, &domain.TaskEvent{
		Type:     domain.EventTypeAuthFailed,
		Status:   domain.EventStatusFailed,
		Message:  "trainer rejected the console credentials",
		TaskID:   taskID,
		TaskType: taskType,
	})
}

func (r *EventRecorder) TaskFinished(ctx context.Context, task domain.Task, errorMessage string) {
	status := domain.EventStatusSuccess
	if task.Status == domain.TaskStatusFailed {
		status = domain.EventStatusFailed
	}
	meta := domain.JSONB{"status": string(task.Status)}
	if errorMessage != "" {
		meta["error"] = errorMessage
	}
	r.record(ctx, &domain.TaskEvent{
		Type:     domain.EventTypeTaskFinished,
		Status:   status,
		Message:  fmt.Sprintf("%s finished with status %s", task.Description, task.Status),
		TaskID:   task.ID,
		TaskType: task.Type,
		Meta:     meta,
	})
}

func (r *EventRecorder) record(ctx context.Context, event *domain.TaskEvent) {
	if r == nil || r.repo == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if err := r.repo.Create(ctx, event); err != nil {
		r.logger.Errorw("task_event_record_failed", "type", event.Type, "task_id", event.TaskID, "error", err)
	}
}
