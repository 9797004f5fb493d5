package db

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

type settingRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSettingRepository(db *gorm.DB, log *logger.Logger) ports.SettingRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &settingRepository{db: db, log: log}
}

func (r *settingRepository) Get(ctx context.Context, key string) (*domain.ConsoleSetting, error) {
	var setting domain.ConsoleSetting
	if err := r.db.WithContext(ctx).Where("key = ?", key).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.log.Errorw("setting_repo_get_failed", "key", key, "error", err)
		return nil, err
	}
	return &setting, nil
}

func (r *settingRepository) Set(ctx context.Context, setting *domain.ConsoleSetting) error {
	var existing domain.ConsoleSetting
	err := r.db.WithContext(ctx).Where("key = ?", setting.Key).First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := r.db.WithContext(ctx).Create(setting).Error; err != nil {
				r.log.Errorw("setting_repo_create_failed", "key", setting.Key, "error", err)
				return err
			}
			r.log.Infow("setting_repo_create_ok", "key", setting.Key)
			return nil
		}
		r.log.Errorw("setting_repo_get_for_set_failed", "key", setting.Key, "error", err)
		return err
	}
	existing.Value = setting.Value
	existing.Type = setting.Type
	existing.Category = setting.Category
	if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
		r.log.Errorw("setting_repo_update_failed", "key", setting.Key, "error", err)
		return err
	}
	r.log.Infow("setting_repo_update_ok", "key", setting.Key)
	return nil
}

func (r *settingRepository) GetByCategory(ctx context.Context, category string) ([]domain.ConsoleSetting, error) {
	var settings []domain.ConsoleSetting
	if err := r.db.WithContext(ctx).Where("category = ?", category).Find(&settings).Error; err != nil {
		r.log.Errorw("setting_repo_get_by_category_failed", "category", category, "error", err)
		return nil, err
	}
	return settings, nil
}

func (r *settingRepository) GetAll(ctx context.Context) ([]domain.ConsoleSetting, error) {
	var settings []domain.ConsoleSetting
	if err := r.db.WithContext(ctx).Order("key asc").Find(&settings).Error; err != nil {
		r.log.Errorw("setting_repo_list_failed", "error", err)
		return nil, err
	}
	return settings, nil
}

// Delete removes the override for real. A soft delete would keep the key
// in the unique index and block a later Set of the same key.
func (r *settingRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Unscoped().Where("key = ?", key).Delete(&domain.ConsoleSetting{}).Error; err != nil {
		r.log.Errorw("setting_repo_delete_failed", "key", key, "error", err)
		return err
	}
	r.log.Infow("setting_repo_delete_ok", "key", key)
	return nil
}
