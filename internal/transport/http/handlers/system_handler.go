package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/internal/infrastructure/sysinfo"
	"github.com/mltrack/backend/internal/transport/http/dto"
)

type SystemHandler struct {
	collector *sysinfo.Collector
	logger    *logger.Logger
}

func NewSystemHandler(collector *sysinfo.Collector, logger *logger.Logger) *SystemHandler {
	return &SystemHandler{
		collector: collector,
		logger:    logger,
	}
}

// GetSystemInfo reports host resource usage for the console's status
// bar: CPU, memory, disk space under the dataset directory, uptime.
func (h *SystemHandler) GetSystemInfo(c *fiber.Ctx) error {
	info, err := h.collector.Collect()
	if err != nil {
		h.logger.Errorw("system_info_failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: "failed to collect system info",
		})
	}
	return c.JSON(info)
}
