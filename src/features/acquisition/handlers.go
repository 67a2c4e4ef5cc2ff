package acquisition

import (
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/gofiber/fiber/v2"
)

// Handler serves the acquisition control endpoints.
type Handler struct {
	service    *Service
	jobService jobs.JobService
}

func NewHandler(service *Service, jobService jobs.JobService) *Handler {
	return &Handler{service: service, jobService: jobService}
}

type runBody struct {
	Artists []string `json:"artists"`
	Tracks  []string `json:"tracks"`
}

// HandleRun queues an acquisition job. With no artists in the body the
// configured artists file is used.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	var body runBody
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	jobID, err := StartAcquireJob(h.jobService, RunRequest{Artists: body.Artists, TrackIDs: body.Tracks})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"job_id": jobID})
}

func (h *Handler) HandleInFlight(c *fiber.Ctx) error {
	return c.JSON(h.service.InFlight())
}

func (h *Handler) HandleCancel(c *fiber.Ctx) error {
	trackID := c.Params("trackID")
	if trackID == "" {
		return c.JSON(fiber.Map{"cancelled": h.service.CancelAll()})
	}
	if !h.service.Cancel(trackID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "track is not in flight"})
	}
	return c.JSON(fiber.Map{"cancelled": 1})
}

func (h *Handler) HandleFailures(c *fiber.Ctx) error {
	records, err := h.service.Failures(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"tracks": records, "count": len(records)})
}

func (h *Handler) HandleFailure(c *fiber.Ctx) error {
	record, err := h.service.Failure(c.Context(), c.Params("trackID"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if record == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no failure recorded for track"})
	}
	return c.JSON(record)
}
