package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type TaskHandler struct {
	service ports.TrainingService
	logger  *logger.Logger
}

func NewTaskHandler(service ports.TrainingService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		service: service,
		logger:  logger,
	}
}

// GetTasks lists the live tasks in launch order, optionally filtered by
// ?type=.
func (h *TaskHandler) GetTasks(c *fiber.Ctx) error {
	taskType, ok := taskTypeFromQuery(c)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Unknown task type",
		})
	}

	tasks := h.service.ActiveTasks(taskType)
	return c.JSON(fiber.Map{
		"tasks": dto.TasksToResponse(tasks),
		"count": len(tasks),
	})
}

// GetTask returns a single live task by ID.
func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	task, err := h.service.GetTask(taskID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: "Task not found",
		})
	}

	return c.JSON(dto.TaskToResponse(*task))
}

// StopTask asks the trainer to halt a running task. The task stays in
// the live list until a status probe confirms it actually stopped.
func (h *TaskHandler) StopTask(c *fiber.Ctx) error {
	taskID := c.Params("id")

	if err := h.service.StopTask(c.UserContext(), taskID); err != nil {
		if errors.Is(err, ports.ErrTrainerUnauthorized) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: "Trainer rejected the configured credentials",
			})
		}
		switch err {
		case services.ErrTaskNotFound:
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "Task not found",
			})
		case services.ErrStopFailed:
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: "Trainer did not accept the stop request",
			})
		default:
			h.logger.Errorw("unexpected stop error", "task_id", taskID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: "Failed to stop task",
			})
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.SuccessResponse{
		Message: "Stop requested",
	})
}
