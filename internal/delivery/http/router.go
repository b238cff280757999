package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/globeoverlay/backend/internal/service"
)

// Deps are the services the HTTP layer reads from
type Deps struct {
	Feed     *service.PositionFeed
	Host     *service.FrameHost
	Overlay  *service.OverlayLayer
	Marker   *service.MarkerSource
	Repo     service.TrackRepository
	Gatherer prometheus.Gatherer
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, deps Deps) {
	handler := NewHandler(deps)

	// Health check
	app.Get("/health", handler.HealthCheck)

	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/position", handler.GetPosition)
		api.Get("/marker", handler.GetMarker)
		api.Get("/track", handler.GetTrack)

		// Frames rendered for a remote camera
		api.Post("/frame", handler.RenderFrame)
		api.Get("/frame", handler.GetLastFrame)

		api.Post("/ui/transition", handler.TransitionUI)
	}
}

// ErrorHandler renders errors as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
