package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/amiri/internal/database"
)

// Health reports liveness and the active data source.
func (h *Handlers) Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"service": "amiri",
		"source":  h.svc.Source(),
		"today":   h.svc.Today().Format(time.DateOnly),
	})
}

// Up is the container health check. It fails only when a database is
// connected but unreachable; the demo and spreadsheet sources need none.
func (h *Handlers) Up(c fiber.Ctx) error {
	if database.DB != nil {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		if err := database.DB.PingContext(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).SendString("database unavailable")
		}
	}
	return c.SendStatus(fiber.StatusOK)
}

// Version returns the build version.
func (h *Handlers) Version(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": h.version,
	})
}
