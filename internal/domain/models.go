package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ==================== ENUMS ====================

type DatasetFormat string

const (
	DatasetFormatCSV  DatasetFormat = "csv"
	DatasetFormatARFF DatasetFormat = "arff"
	DatasetFormatJSON DatasetFormat = "json"
)

type EventStatus string

const (
	EventStatusPending EventStatus = "pending"
	EventStatusSuccess EventStatus = "success"
	EventStatusFailed  EventStatus = "failed"
)

// ==================== JSONB TYPES ====================

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return errors.New("failed to scan JSONB: invalid type")
	}
}

// ==================== ENTITIES ====================

// TrainingRun is the durable history row for a launched job. It is written
// when a launch succeeds and finalized when the watcher observes a terminal
// status. History is write-only from the console's point of view: the live
// task registry is never rebuilt from these rows.
type TrainingRun struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	TaskID      string     `gorm:"size:64;uniqueIndex;not null" json:"task_id"`
	Type        TaskType   `gorm:"size:32;not null;index" json:"type"`
	Status      TaskStatus `gorm:"size:32;not null;index" json:"status"`
	Description string     `gorm:"size:512" json:"description"`
	Params      JSONB      `gorm:"type:jsonb" json:"params"`

	// Filled in when the run reaches a terminal status.
	ErrorMessage string     `gorm:"type:text" json:"error_message,omitempty"`
	FinishedAt   *time.Time `gorm:"index" json:"finished_at,omitempty"`
}

func (TrainingRun) TableName() string {
	return "training_runs"
}

// Dataset is one uploaded training set in the local catalog. The file
// itself lives under the configured dataset directory; Path is internal
// and never leaves the API.
type Dataset struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Name        string        `gorm:"size:255;uniqueIndex;not null" json:"name"`
	Format      DatasetFormat `gorm:"size:20;not null;default:'csv'" json:"format"`
	Description string        `gorm:"type:text" json:"description"`
	Path        string        `gorm:"size:512;not null" json:"-"`
	SizeBytes   int64         `gorm:"default:0" json:"size_bytes"`
	Checksum    string        `gorm:"size:64" json:"checksum"`
}

func (Dataset) TableName() string {
	return "datasets"
}

// TaskEvent is one row of the activity feed: launches, stop requests,
// probe failures and final outcomes, each tied to the task it concerns.
type TaskEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Type     string      `gorm:"size:100;not null;index" json:"type"`
	Status   EventStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Message  string      `gorm:"type:text" json:"message"`
	Meta     JSONB       `gorm:"type:jsonb" json:"meta"`
	TaskID   string      `gorm:"size:64;index" json:"task_id"`
	TaskType TaskType    `gorm:"size:32;index" json:"task_type"`
}

func (TaskEvent) TableName() string {
	return "task_events"
}

type ConsoleSetting struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Key      string `gorm:"size:255;uniqueIndex;not null" json:"key"`
	Value    string `gorm:"type:text" json:"value"`
	Type     string `gorm:"size:50;default:'string'" json:"type"`
	Category string `gorm:"size:100;index" json:"category"`
}

func (ConsoleSetting) TableName() string {
	return "console_settings"
}

// ==================== AGGREGATES ====================

// RunStats is a point-in-time aggregate over the run history. Recent*
// counts cover finished runs with FinishedAt after Since.
type RunStats struct {
	TotalRuns      int64            `json:"total_runs"`
	ByStatus       map[string]int64 `json:"by_status"`
	ByType         map[string]int64 `json:"by_type"`
	RecentFinished int64            `json:"recent_finished"`
	RecentFailed   int64            `json:"recent_failed"`
	Since          time.Time        `json:"since"`
}
