package db

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

type runRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRunRepository(db *gorm.DB, log *logger.Logger) ports.RunRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &runRepository{
		db:  db,
		log: log,
	}
}

func (r *runRepository) Create(ctx context.Context, run *domain.TrainingRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		r.log.Errorw("run_repo_create_failed", "task_id", run.TaskID, "type", run.Type, "error", err)
		return err
	}
	r.log.Infow("run_repo_create_ok", "id", run.ID, "task_id", run.TaskID, "type", run.Type)
	return nil
}

func (r *runRepository) GetByTaskID(ctx context.Context, taskID string) (*domain.TrainingRun, error) {
	var run domain.TrainingRun
	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&run).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			r.log.Errorw("run_repo_get_failed", "task_id", taskID, "error", err)
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) GetAll(ctx context.Context, limit int) ([]domain.TrainingRun, error) {
	var runs []domain.TrainingRun
	err := r.db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		r.log.Errorw("run_repo_list_failed", "error", err)
		return nil, err
	}
	return runs, nil
}

// Finish closes the run once its task reached a terminal status. Only
// rows without a finished_at are touched, so a second coordinator
// reporting the same task is a no-op.
func (r *runRepository) Finish(ctx context.Context, taskID string, status domain.TaskStatus, errorMessage string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.TrainingRun{}).
		Where("task_id = ? AND finished_at IS NULL", taskID).
		Updates(map[string]interface{}{
			"status":        status,
			"error_message": errorMessage,
			"finished_at":   now,
		})
	if res.Error != nil {
		r.log.Errorw("run_repo_finish_failed", "task_id", taskID, "status", status, "error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		r.log.Debugw("run_repo_finish_noop", "task_id", taskID, "status", status)
		return nil
	}
	r.log.Infow("run_repo_finish_ok", "task_id", taskID, "status", status)
	return nil
}

func (r *runRepository) Stats(ctx context.Context, since time.Time) (*domain.RunStats, error) {
	stats := &domain.RunStats{
		ByStatus: make(map[string]int64),
		ByType:   make(map[string]int64),
		Since:    since,
	}

	if err := r.db.WithContext(ctx).Model(&domain.TrainingRun{}).Count(&stats.TotalRuns).Error; err != nil {
		r.log.Errorw("run_repo_stats_failed", "error", err)
		return nil, err
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.TrainingRun{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		r.log.Errorw("run_repo_stats_failed", "error", err)
		return nil, err
	}
	for _, b := range byStatus {
		stats.ByStatus[b.Status] = b.Count
	}

	var byType []struct {
		Type  string
		Count int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.TrainingRun{}).
		Select("type, count(*) as count").
		Group("type").
		Scan(&byType).Error; err != nil {
		r.log.Errorw("run_repo_stats_failed", "error", err)
		return nil, err
	}
	for _, b := range byType {
		stats.ByType[b.Type] = b.Count
	}

	if err := r.db.WithContext(ctx).Model(&domain.TrainingRun{}).
		Where("finished_at IS NOT NULL AND finished_at > ?", since).
		Count(&stats.RecentFinished).Error; err != nil {
		r.log.Errorw("run_repo_stats_failed", "error", err)
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&domain.TrainingRun{}).
		Where("finished_at IS NOT NULL AND finished_at > ? AND status = ?", since, domain.TaskStatusFailed).
		Count(&stats.RecentFailed).Error; err != nil {
		r.log.Errorw("run_repo_stats_failed", "error", err)
		return nil, err
	}

	return stats, nil
}

// DeleteOlderThan removes finished runs past the retention cutoff, plus
// any soft-deleted leftovers. Rows go for real; this is the retention
// path, not a user delete.
func (r *runRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Where("(finished_at IS NOT NULL AND finished_at < ?) OR (deleted_at IS NOT NULL AND deleted_at < ?)", cutoff, cutoff).
		Delete(&domain.TrainingRun{})
	if res.Error != nil {
		r.log.Errorw("run_repo_prune_failed", "error", res.Error)
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Infow("run_repo_prune_ok", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
