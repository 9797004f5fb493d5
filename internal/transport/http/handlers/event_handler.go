package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

const defaultEventLimit = 50

type EventHandler struct {
	repo ports.EventRepository
}

func NewEventHandler(repo ports.EventRepository) *EventHandler {
	return &EventHandler{repo: repo}
}

// GetEvents returns the activity feed, newest first. ?task_id= narrows
// it to one task, ?limit= caps the page size.
func (h *EventHandler) GetEvents(c *fiber.Ctx) error {
	if taskID := c.Query("task_id"); taskID != "" {
		events, err := h.repo.GetByTask(c.Context(), taskID)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
		}
		return c.JSON(events)
	}

	limit := defaultEventLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid limit"})
		}
		limit = parsed
	}

	events, err := h.repo.GetAll(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(events)
}
