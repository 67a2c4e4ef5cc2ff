package jobs

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler serves the /jobs API.
type Handler struct {
	service *Service
}

// JobView is a job as returned by the API, with links to related endpoints.
type JobView struct {
	*Job
	Links map[string]string `json:"_links"`
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func view(c *fiber.Ctx, job *Job) JobView {
	self := c.BaseURL() + "/jobs/" + job.ID
	return JobView{
		Job: job,
		Links: map[string]string{
			"self":   self,
			"logs":   self + "/logs",
			"cancel": self + "/cancel",
		},
	}
}

func (h *Handler) lookup(c *fiber.Ctx) (*Job, error) {
	job, ok := h.service.GetJob(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, ErrJobNotFound.Error())
	}
	return job, nil
}

// HandleJobList lists jobs, newest first, optionally filtered by ?status= and ?type=.
func (h *Handler) HandleJobList(c *fiber.Ctx) error {
	status, jobType := JobStatus(c.Query("status")), c.Query("type")
	views := []JobView{}
	for _, job := range h.service.GetJobs() {
		if (status != "" && job.Status != status) || (jobType != "" && job.Type != jobType) {
			continue
		}
		views = append(views, view(c, job))
	}
	return c.JSON(views)
}

func (h *Handler) HandleJobStatus(c *fiber.Ctx) error {
	job, err := h.lookup(c)
	if err != nil {
		return err
	}
	return c.JSON(view(c, job))
}

func (h *Handler) HandleJobLogs(c *fiber.Ctx) error {
	job, err := h.lookup(c)
	if err != nil {
		return err
	}
	if job.LogPath == "" {
		return c.SendString("No logs for this job.")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendFile(job.LogPath)
}

func (h *Handler) HandleCancelJob(c *fiber.Ctx) error {
	job, err := h.lookup(c)
	if err != nil {
		return err
	}
	if err := h.service.CancelJob(job.ID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return err
	}
	return c.JSON(view(c, job))
}

// HandleCleanupJobs forgets finished jobs older than ?max_age (default 24h).
func (h *Handler) HandleCleanupJobs(c *fiber.Ctx) error {
	maxAge := 24 * time.Hour
	if raw := c.Query("max_age"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid max_age: "+raw)
		}
		maxAge = d
	}
	return c.JSON(fiber.Map{"cleared": h.service.CleanupOldJobs(maxAge)})
}

func (h *Handler) HandleClearFinishedJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"cleared": h.service.ClearFinishedJobs()})
}
