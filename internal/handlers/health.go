package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/wagate/wagate-backend/internal/services"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	Version  string
	registry *services.SessionRegistry
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, registry *services.SessionRegistry) *HealthHandler {
	return &HealthHandler{
		Version:  version,
		registry: registry,
	}
}

// Check returns the health status of the service
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "OK",
		"service":  "WaGate Backend",
		"version":  h.Version,
		"sessions": h.registry.SessionCount(),
	})
}
