package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

type RunHandler struct {
	repo ports.RunRepository
}

func NewRunHandler(repo ports.RunRepository) *RunHandler {
	return &RunHandler{repo: repo}
}

// GetRuns lists past training runs, newest first. ?limit= caps the page
// size.
func (h *RunHandler) GetRuns(c *fiber.Ctx) error {
	limit := defaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid limit"})
		}
		limit = parsed
		if limit > maxRunLimit {
			limit = maxRunLimit
		}
	}

	runs, err := h.repo.GetAll(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(fiber.Map{
		"runs":  dto.RunsToResponse(runs),
		"count": len(runs),
	})
}

// GetRun returns the history row for one task ID.
func (h *RunHandler) GetRun(c *fiber.Ctx) error {
	taskID := c.Params("taskId")

	run, err := h.repo.GetByTaskID(c.Context(), taskID)
	if err != nil || run == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "Run not found"})
	}
	return c.JSON(dto.RunToResponse(run))
}
