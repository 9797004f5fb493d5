package dto

import (
	"time"

	"github.com/mltrack/backend/internal/domain"
)

type RunResponse struct {
	ID           uint                   `json:"id"`
	TaskID       string                 `json:"task_id"`
	Type         domain.TaskType        `json:"type"`
	Status       domain.TaskStatus      `json:"status"`
	Description  string                 `json:"description"`
	Params       map[string]interface{} `json:"params,omitempty"`
	ErrorMessage string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
	FinishedAt   *time.Time             `json:"finished_at,omitempty"`
}

func RunToResponse(run *domain.TrainingRun) RunResponse {
	return RunResponse{
		ID:           run.ID,
		TaskID:       run.TaskID,
		Type:         run.Type,
		Status:       run.Status,
		Description:  run.Description,
		Params:       run.Params,
		ErrorMessage: run.ErrorMessage,
		CreatedAt:    run.CreatedAt,
		FinishedAt:   run.FinishedAt,
	}
}

func RunsToResponse(runs []domain.TrainingRun) []RunResponse {
	responses := make([]RunResponse, len(runs))
	for i := range runs {
		responses[i] = RunToResponse(&runs[i])
	}
	return responses
}
