package db

import (
	"gorm.io/gorm"

	"github.com/mltrack/backend/internal/domain"
)

func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.TrainingRun{},
		&domain.Dataset{},
		&domain.TaskEvent{},
		&domain.ConsoleSetting{},
	); err != nil {
		return err
	}

	return createCustomIndexes(db)
}

func createCustomIndexes(db *gorm.DB) error {
	// Partial index for the finalize path, which updates by task_id on
	// rows that have not finished yet.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_training_runs_unfinished
		ON training_runs (task_id)
		WHERE finished_at IS NULL AND deleted_at IS NULL
	`).Error; err != nil {
		return err
	}

	return nil
}
