package db

import (
	"context"

	"gorm.io/gorm"

	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
)

type datasetRepository struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDatasetRepository(db *gorm.DB, log *logger.Logger) ports.DatasetRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &datasetRepository{db: db, log: log}
}

func (r *datasetRepository) Create(ctx context.Context, dataset *domain.Dataset) error {
	if err := r.db.WithContext(ctx).Create(dataset).Error; err != nil {
		r.log.Errorw("dataset_repo_create_failed", "name", dataset.Name, "error", err)
		return err
	}
	r.log.Infow("dataset_repo_create_ok", "id", dataset.ID, "name", dataset.Name)
	return nil
}

func (r *datasetRepository) GetByID(ctx context.Context, id uint) (*domain.Dataset, error) {
	var dataset domain.Dataset
	if err := r.db.WithContext(ctx).First(&dataset, id).Error; err != nil {
		if err != gorm.ErrRecordNotFound {
			r.log.Errorw("dataset_repo_get_failed", "id", id, "error", err)
		}
		return nil, err
	}
	return &dataset, nil
}

// GetByName treats a missing row as (nil, nil); callers check the
// pointer, an error means the lookup itself failed.
func (r *datasetRepository) GetByName(ctx context.Context, name string) (*domain.Dataset, error) {
	var dataset domain.Dataset
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&dataset).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorw("dataset_repo_get_by_name_failed", "name", name, "error", err)
		return nil, err
	}
	return &dataset, nil
}

func (r *datasetRepository) GetByNameWithDeleted(ctx context.Context, name string) (*domain.Dataset, error) {
	var dataset domain.Dataset
	if err := r.db.WithContext(ctx).Unscoped().Where("name = ?", name).First(&dataset).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		r.log.Errorw("dataset_repo_get_by_name_with_deleted_failed", "name", name, "error", err)
		return nil, err
	}
	return &dataset, nil
}

func (r *datasetRepository) GetAll(ctx context.Context) ([]domain.Dataset, error) {
	var datasets []domain.Dataset
	if err := r.db.WithContext(ctx).Order("name asc").Find(&datasets).Error; err != nil {
		r.log.Errorw("dataset_repo_list_failed", "error", err)
		return nil, err
	}
	return datasets, nil
}

func (r *datasetRepository) Update(ctx context.Context, dataset *domain.Dataset) error {
	if err := r.db.WithContext(ctx).Save(dataset).Error; err != nil {
		r.log.Errorw("dataset_repo_update_failed", "id", dataset.ID, "error", err)
		return err
	}
	r.log.Infow("dataset_repo_update_ok", "id", dataset.ID)
	return nil
}

func (r *datasetRepository) Restore(ctx context.Context, dataset *domain.Dataset) error {
	dataset.DeletedAt = gorm.DeletedAt{}
	if err := r.db.WithContext(ctx).Unscoped().Save(dataset).Error; err != nil {
		r.log.Errorw("dataset_repo_restore_failed", "id", dataset.ID, "error", err)
		return err
	}
	r.log.Infow("dataset_repo_restore_ok", "id", dataset.ID)
	return nil
}

func (r *datasetRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&domain.Dataset{}, id).Error; err != nil {
		r.log.Errorw("dataset_repo_delete_failed", "id", id, "error", err)
		return err
	}
	r.log.Infow("dataset_repo_delete_ok", "id", id)
	return nil
}
