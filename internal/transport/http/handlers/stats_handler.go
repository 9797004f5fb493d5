package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mltrack/backend/internal/core/services"
)

type StatsHandler struct {
	stats *services.StatsService
}

func NewStatsHandler(stats *services.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// GetStats serves the dashboard snapshot. History comes from the cached
// aggregate, so this never hits the database.
func (h *StatsHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(h.stats.Snapshot())
}
