package jobs

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(app *fiber.App, service *Service) {
	handler := NewHandler(service)
	jobs := app.Group("/jobs")
	jobs.Get("/", handler.HandleJobList)
	jobs.Post("/cleanup", handler.HandleCleanupJobs)
	jobs.Post("/clear-finished", handler.HandleClearFinishedJobs)
	jobs.Get("/:id", handler.HandleJobStatus)
	jobs.Get("/:id/logs", handler.HandleJobLogs)
	jobs.Post("/:id/cancel", handler.HandleCancelJob)
}
