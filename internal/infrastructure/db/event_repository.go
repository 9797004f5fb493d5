package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

type eventRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEventRepository(db *gorm.DB, log *logger.Logger) ports.EventRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &eventRepository{
		db:  db,
		log: log,
	}
}

func (r *eventRepository) Create(ctx context.Context, event *domain.TaskEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		r.log.Errorw("event_repo_create_failed", "type", event.Type, "task_id", event.TaskID, "error", err)
		return err
	}
	r.log.Debugw("event_repo_create_ok", "id", event.ID, "type", event.Type, "task_id", event.TaskID)
	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (*domain.TaskEvent, error) {
	var event domain.TaskEvent
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			r.log.Errorw("event_repo_get_failed", "id", id, "error", err)
		}
		return nil, err
	}
	return &event, nil
}

func (r *eventRepository) GetByTask(ctx context.Context, taskID string) ([]domain.TaskEvent, error) {
	var events []domain.TaskEvent
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at desc").
		Limit(50).
		Find(&events).Error
	if err != nil {
		r.log.Errorw("event_repo_get_by_task_failed", "task_id", taskID, "error", err)
		return nil, err
	}
	return events, nil
}

func (r *eventRepository) GetAll(ctx context.Context, limit int) ([]domain.TaskEvent, error) {
	var events []domain.TaskEvent
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		r.log.Errorw("event_repo_list_failed", "error", err)
		return nil, err
	}
	return events, nil
}

// DeleteOlderThan removes feed rows past the retention cutoff for real;
// the feed has no restore path.
func (r *eventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&domain.TaskEvent{})
	if res.Error != nil {
		r.log.Errorw("event_repo_prune_failed", "error", res.Error)
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Infow("event_repo_prune_ok", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
