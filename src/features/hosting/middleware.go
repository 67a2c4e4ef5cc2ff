package hosting

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are polled often and only logged on failure.
var quietPaths = []string{"/health", "/metrics", "/acquisition/inflight"}

// RecoverMiddleware turns handler panics into 500 responses.
func RecoverMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Recovered from panic in HTTP handler", "method", c.Method(), "path", c.Path(), "panic", r)
				err = fiber.NewError(fiber.StatusInternalServerError, fmt.Sprint(r))
			}
		}()
		return c.Next()
	}
}

// LogAllRequestsMiddleware logs all requests
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		if status >= 400 {
			slog.Error("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"error", err,
			)
		} else if !isQuiet(c.Path()) {
			slog.Debug("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"ip", c.IP(),
			)
		}
		return err
	}
}

func isQuiet(path string) bool {
	for _, p := range quietPaths {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
