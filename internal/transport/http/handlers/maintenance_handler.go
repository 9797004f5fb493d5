package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type MaintenanceHandler struct {
	retention *services.RetentionService
	logger    *logger.Logger
}

func NewMaintenanceHandler(retention *services.RetentionService, logger *logger.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		retention: retention,
		logger:    logger,
	}
}

type PruneRequestDTO struct {
	// Before is an RFC3339 cutoff; rows older than it go. Empty means
	// the configured retention age.
	Before      string `json:"before"`
	Force       bool   `json:"force"`
	ConfirmText string `json:"confirm_text"`
}

// PruneHistory deletes finished runs and activity events older than the
// cutoff. A cutoff newer than the retention policy needs force=true and
// confirm_text='PRUNE HISTORY'.
func (h *MaintenanceHandler) PruneHistory(c *fiber.Ctx) error {
	var req PruneRequestDTO
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("prune_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}

	var before time.Time
	if req.Before != "" {
		parsed, err := time.Parse(time.RFC3339, req.Before)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "before must be an RFC3339 timestamp",
			})
		}
		before = parsed
	}

	h.logger.Infow("prune_request", "before", req.Before, "force", req.Force, "from", c.IP())

	result, err := h.retention.PruneNow(c.UserContext(), services.PruneRequest{
		Before:      before,
		Force:       req.Force,
		ConfirmText: req.ConfirmText,
		RequestedBy: c.IP(),
	})
	if err != nil {
		if err == services.ErrPruneValidationFailed {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "pruning inside the retention window requires force=true and confirm_text='PRUNE HISTORY'",
			})
		}
		h.logger.Errorw("prune_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(result)
}
