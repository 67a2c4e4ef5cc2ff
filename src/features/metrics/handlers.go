package metrics

import (
	"log/slog"

	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/gofiber/fiber/v2"
)

// Handler handles HTTP requests for the metrics feature.
type Handler struct {
	service    *Service
	jobService jobs.JobService
}

// NewHandler creates a new metrics handler.
func NewHandler(service *Service, jobService jobs.JobService) *Handler {
	return &Handler{service: service, jobService: jobService}
}

// GetOverview returns the acquisition overview.
func (h *Handler) GetOverview(c *fiber.Ctx) error {
	overview, err := h.service.GetOverview(c.Context())
	if err != nil {
		slog.Error("Error loading metrics", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading metrics"})
	}
	return c.JSON(fiber.Map{"overview": overview, "percentage": overview.Percentage()})
}

// GetStatusChart returns the status distribution as chart data.
func (h *Handler) GetStatusChart(c *fiber.Ctx) error {
	overview, err := h.service.GetOverview(c.Context())
	if err != nil {
		slog.Error("Error loading metrics for chart", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading chart data"})
	}
	return c.JSON(overview.StatusChartData())
}

// GetFailureChart returns the ledger reasons as chart data.
func (h *Handler) GetFailureChart(c *fiber.Ctx) error {
	overview, err := h.service.GetOverview(c.Context())
	if err != nil {
		slog.Error("Error loading metrics for chart", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Error loading chart data"})
	}
	return c.JSON(overview.FailureChartData())
}

// StartSnapshot queues a snapshot job.
func (h *Handler) StartSnapshot(c *fiber.Ctx) error {
	jobID, err := h.jobService.StartJob(JobType, "Metrics snapshot", map[string]any{})
	if err != nil {
		slog.Error("Failed to start metrics snapshot", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}
