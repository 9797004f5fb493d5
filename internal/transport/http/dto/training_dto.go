package dto

import (
	"time"

	"github.com/mltrack/backend/internal/domain"
)

// ==================== Request DTOs ====================

type StartTrainingRequest struct {
	Algorithm string                 `json:"algorithm"`
	Dataset   string                 `json:"dataset"`
	Options   map[string]interface{} `json:"options,omitempty"`
}

func (r *StartTrainingRequest) Validate() []string {
	var errors []string

	if r.Algorithm == "" {
		errors = append(errors, "algorithm is required")
	}
	if r.Dataset == "" {
		errors = append(errors, "dataset is required")
	}

	return errors
}

type StartCustomTrainingRequest struct {
	Script  string                 `json:"script"`
	Dataset string                 `json:"dataset,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

func (r *StartCustomTrainingRequest) Validate() []string {
	var errors []string

	if r.Script == "" {
		errors = append(errors, "script is required")
	}

	return errors
}

type RetrainRequest struct {
	Custom  bool                   `json:"custom"`
	Dataset string                 `json:"dataset,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ==================== Response DTOs ====================

type TaskResponse struct {
	TaskID      string            `json:"task_id"`
	Type        domain.TaskType   `json:"type"`
	Status      domain.TaskStatus `json:"status"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type SuccessResponse struct {
	Message string `json:"message"`
}

// ==================== Mappers ====================

func TaskToResponse(task domain.Task) TaskResponse {
	return TaskResponse{
		TaskID:      task.ID,
		Type:        task.Type,
		Status:      task.Status,
		Description: task.Description,
		CreatedAt:   task.CreatedAt,
	}
}

func TasksToResponse(tasks []domain.Task) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = TaskToResponse(task)
	}
	return responses
}
