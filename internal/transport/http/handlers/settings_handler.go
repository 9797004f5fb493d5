package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/services"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type SettingsHandler struct {
	service *services.ConsoleSettingService
	logger  *logger.Logger
}

func NewSettingsHandler(service *services.ConsoleSettingService, logger *logger.Logger) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		logger:  logger,
	}
}

// GetSettings returns every stored console setting as a flat key/value
// map.
func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.service.GetSettings(c.Context())
	if err != nil {
		h.logger.Errorw("settings_get_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}
	return c.JSON(settings)
}

// UpdateSettings upserts the posted key/value pairs.
func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req map[string]interface{}
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warnw("settings_update_body_parse_failed", "error", err)
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "invalid request body",
		})
	}
	if len(req) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: "no settings provided",
		})
	}

	h.logger.Infow("settings_update_request", "keys", len(req))

	if err := h.service.UpdateSettings(c.UserContext(), req); err != nil {
		if err == services.ErrSettingReadOnly {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "auth settings cannot be changed through the API",
			})
		}
		h.logger.Errorw("settings_update_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.SuccessResponse{
		Message: "settings updated successfully",
	})
}

// DeleteSetting drops one key, reverting the console to its default for
// that setting.
func (h *SettingsHandler) DeleteSetting(c *fiber.Ctx) error {
	key := c.Params("key")

	if err := h.service.DeleteSetting(c.UserContext(), key); err != nil {
		if err == services.ErrSettingNotFound {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "setting not found",
			})
		}
		if err == services.ErrSettingReadOnly {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "auth settings cannot be changed through the API",
			})
		}
		h.logger.Errorw("settings_delete_failed", "key", key, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(dto.SuccessResponse{
		Message: "setting deleted",
	})
}
