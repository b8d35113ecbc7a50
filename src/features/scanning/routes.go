package scanning

import (
	"github.com/contre95/soulscan/src/features/config"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the routes for the scanner feature.
func RegisterRoutes(app *fiber.App, service *Service, configManager *config.Manager) {
	handler := NewHandler(service, configManager)

	scanner := app.Group("/scanner")
	scanner.Get("/status", handler.HandleStatus)
	scanner.Get("/report", handler.HandleReport)
	scanner.Post("/scan", handler.HandleScan)
	scanner.Post("/reload", handler.HandleReload)
}
