package hosting

import (
	"fmt"
	"log/slog"

	"github.com/contre95/soulfetch/src/features/acquisition"
	"github.com/contre95/soulfetch/src/features/config"
	"github.com/contre95/soulfetch/src/features/jobs"
	"github.com/contre95/soulfetch/src/features/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP control plane of the application.
type Server struct {
	app  *fiber.App
	port uint32
}

// NewServer creates a new HTTP server.
func NewServer(cfg *config.Manager, acquisitionService *acquisition.Service, jobService *jobs.Service, metricsService *metrics.Service) *Server {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				slog.Error("Internal Server Error", "error", err)
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
		AppName:               "Soulfetch",
		DisableStartupMessage: true,
		EnablePrintRoutes:     cfg.Get().Server.PrintRoutes,
	})

	app.Use(RecoverMiddleware())
	app.Use(LogAllRequestsMiddleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	config.RegisterRoutes(app, cfg)
	jobs.RegisterRoutes(app, jobService)
	acquisition.RegisterRoutes(app, acquisitionService, jobService)
	metrics.RegisterRoutes(app, metrics.NewHandler(metricsService, jobService))

	return &Server{app: app, port: cfg.Get().Server.Port}
}

// App exposes the underlying fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.app.Listen(":" + fmt.Sprint(s.port))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
