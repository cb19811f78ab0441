package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Fatnaoui/crawler-project/internal/storage"
)

// StorageHandler exposes ledger operation metrics
type StorageHandler struct {
	ledger  storage.Ledger
	metrics *storage.SimpleMetricsCollector
}

// NewStorageHandler creates a new storage handler
func NewStorageHandler(ledger storage.Ledger, metrics *storage.SimpleMetricsCollector) *StorageHandler {
	return &StorageHandler{
		ledger:  ledger,
		metrics: metrics,
	}
}

// GetStorageMetrics returns per-operation ledger timings
func (h *StorageHandler) GetStorageMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics_summary": h.metrics.GetMetricsSummary(),
	})
}

// GetStorageHealth checks the ledger database
func (h *StorageHandler) GetStorageHealth(c *fiber.Ctx) error {
	if err := h.ledger.Health(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"healthy": false,
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"healthy": true,
		"status":  "Ledger is healthy",
	})
}

// ClearMetrics clears all collected metrics
func (h *StorageHandler) ClearMetrics(c *fiber.Ctx) error {
	h.metrics.ClearMetrics()
	return c.JSON(fiber.Map{
		"message": "Metrics cleared successfully",
	})
}
