package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/ports"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/domain"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type TrainingHandler struct {
	service ports.TrainingService
	logger  *logger.Logger
}

func NewTrainingHandler(service ports.TrainingService, logger *logger.Logger) *TrainingHandler {
	return &TrainingHandler{
		service: service,
		logger:  logger,
	}
}

// StartTraining launches a built-in algorithm run on the trainer and
// registers the returned task for watching.
func (h *TrainingHandler) StartTraining(c *fiber.Ctx) error {
	var req dto.StartTrainingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "Validation failed",
			Details: errs,
		})
	}

	task, err := h.service.LaunchTraining(c.UserContext(), ports.StartTrainingInput{
		Algorithm: req.Algorithm,
		Dataset:   req.Dataset,
		Options:   req.Options,
	})
	if err != nil {
		return h.launchError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.TaskToResponse(*task))
}

// StartCustomTraining launches a user-supplied training script.
func (h *TrainingHandler) StartCustomTraining(c *fiber.Ctx) error {
	var req dto.StartCustomTrainingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	if errs := req.Validate(); len(errs) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error:   "Validation failed",
			Details: errs,
		})
	}

	task, err := h.service.LaunchCustomTraining(c.UserContext(), ports.StartCustomTrainingInput{
		Script:  req.Script,
		Dataset: req.Dataset,
		Options: req.Options,
	})
	if err != nil {
		return h.launchError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.TaskToResponse(*task))
}

// Retrain launches a retraining job for an existing model.
func (h *TrainingHandler) Retrain(c *fiber.Ctx) error {
	modelID := c.Params("id")

	var req dto.RetrainRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid request body",
		})
	}

	task, err := h.service.LaunchRetrain(c.UserContext(), ports.RetrainInput{
		ModelID: modelID,
		Custom:  req.Custom,
		Dataset: req.Dataset,
		Options: req.Options,
	})
	if err != nil {
		return h.launchError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(dto.TaskToResponse(*task))
}

// GetModels proxies the trainer's model list so the console can offer
// retrain targets.
func (h *TrainingHandler) GetModels(c *fiber.Ctx) error {
	models, err := h.service.ListModels(c.UserContext())
	if err != nil {
		if errors.Is(err, ports.ErrTrainerUnauthorized) {
			return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
				Error: "Trainer rejected the configured credentials",
			})
		}
		h.logger.Errorw("model list failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: "Failed to fetch models from the trainer",
		})
	}

	return c.JSON(fiber.Map{
		"models": models,
		"count":  len(models),
	})
}

func (h *TrainingHandler) launchError(c *fiber.Ctx, err error) error {
	if errors.Is(err, ports.ErrTrainerUnauthorized) {
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: "Trainer rejected the configured credentials",
		})
	}

	switch err {
	case services.ErrTrainingInvalidInput:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Invalid training parameters",
		})
	case services.ErrDatasetNotFound:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "Unknown dataset",
		})
	case services.ErrLaunchFailed:
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{
			Error: "Failed to launch the job on the trainer",
		})
	default:
		h.logger.Errorw("unexpected launch error", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "Failed to launch training",
		})
	}
}

// taskTypeFromQuery validates an optional ?type= filter. An empty value
// means no filter.
func taskTypeFromQuery(c *fiber.Ctx) (domain.TaskType, bool) {
	raw := c.Query("type")
	if raw == "" {
		return "", true
	}
	taskType := domain.TaskType(raw)
	return taskType, taskType.Valid()
}
