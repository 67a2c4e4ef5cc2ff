package acquisition

import (
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App, service *Service, jobService jobs.JobService) {
	handler := NewHandler(service, jobService)
	acquisition := app.Group("/acquisition")
	acquisition.Post("/run", handler.HandleRun)
	acquisition.Get("/inflight", handler.HandleInFlight)
	acquisition.Post("/cancel", handler.HandleCancel)
	acquisition.Post("/cancel/:trackID", handler.HandleCancel)
	acquisition.Get("/failures", handler.HandleFailures)
	acquisition.Get("/failures/:trackID", handler.HandleFailure)
}
