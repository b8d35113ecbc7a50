package hosting

import (
	"log/slog"
	"slices"
	"time"

	"github.com/gofiber/fiber/v2"
)

// quietPaths are polled by dashboards and scrapers and only logged on error.
var quietPaths = []string{"/health", "/metrics", "/scanner/status"}

// LogAllRequestsMiddleware logs every request with its status and duration
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		if status >= 400 {
			slog.Error("HTTP request",
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"error", err,
			)
			return err
		}
		if slices.Contains(quietPaths, c.Path()) {
			return err
		}
		slog.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", duration.String(),
		)
		return err
	}
}
