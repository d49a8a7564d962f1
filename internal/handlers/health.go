package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	Version string
	db      *gorm.DB
}

// NewHealthHandler creates a new health handler. db may be nil when running
// on the in-memory store.
func NewHealthHandler(version string, db *gorm.DB) *HealthHandler {
	return &HealthHandler{Version: version, db: db}
}

// Check reports service health, including database reachability.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "healthy"
	statusCode := fiber.StatusOK
	dbHealthy := true

	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err != nil || sqlDB.Ping() != nil {
			status = "unhealthy"
			statusCode = fiber.StatusServiceUnavailable
			dbHealthy = false
		}
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"service": "ZipDrop Backend",
		"version": h.Version,
		"services": fiber.Map{
			"database": dbHealthy,
		},
	})
}
