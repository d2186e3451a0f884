package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/raffle-service/internal/api/dto"
	"github.com/spec-kit/raffle-service/internal/scheduler"
)

// AdminHandler exposes operational endpoints.
type AdminHandler struct {
	sweeper *scheduler.Sweeper
}

// NewAdminHandler constructs handler.
func NewAdminHandler(sweeper *scheduler.Sweeper) *AdminHandler {
	return &AdminHandler{sweeper: sweeper}
}

// Sweep POST /admin/sweep triggers one lifecycle pass out of schedule.
func (h *AdminHandler) Sweep(c *fiber.Ctx) error {
	result, err := h.sweeper.RunOnce(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SweepResponse{
		Scanned:     result.Scanned,
		Transitions: result.Transitions,
		Failed:      result.Failed,
		Skipped:     result.Skipped,
	}})
}
