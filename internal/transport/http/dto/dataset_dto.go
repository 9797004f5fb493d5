package dto

import (
	"time"

	"github.com/mltrack/backend/internal/domain"
)

type DatasetResponse struct {
	ID          uint                 `json:"id"`
	Name        string               `json:"name"`
	Format      domain.DatasetFormat `json:"format"`
	Description string               `json:"description,omitempty"`
	SizeBytes   int64                `json:"size_bytes"`
	Checksum    string               `json:"checksum,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func DatasetToResponse(dataset *domain.Dataset) DatasetResponse {
	return DatasetResponse{
		ID:          dataset.ID,
		Name:        dataset.Name,
		Format:      dataset.Format,
		Description: dataset.Description,
		SizeBytes:   dataset.SizeBytes,
		Checksum:    dataset.Checksum,
		CreatedAt:   dataset.CreatedAt,
		UpdatedAt:   dataset.UpdatedAt,
	}
}

func DatasetsToResponse(datasets []domain.Dataset) []DatasetResponse {
	responses := make([]DatasetResponse, len(datasets))
	for i := range datasets {
		responses[i] = DatasetToResponse(&datasets[i])
	}
	return responses
}
