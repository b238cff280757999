package http

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/service"
	"github.com/globeoverlay/backend/pkg/utils"
)

// Handler contains all HTTP handlers
type Handler struct {
	feed    *service.PositionFeed
	host    *service.FrameHost
	overlay *service.OverlayLayer
	marker  *service.MarkerSource
	repo    service.TrackRepository
}

// NewHandler creates a new handler
func NewHandler(deps Deps) *Handler {
	return &Handler{
		feed:    deps.Feed,
		host:    deps.Host,
		overlay: deps.Overlay,
		marker:  deps.Marker,
		repo:    deps.Repo,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status, label := h.feed.Status()

	database := "ok"
	if err := h.repo.Health(c.Context()); err != nil {
		database = "unavailable"
	}

	return c.JSON(fiber.Map{
		"status":    "ok",
		"service":   "globe-overlay",
		"version":   "1.0.0",
		"feed":      status.String(),
		"feed_text": label,
		"model":     h.overlay.Readiness().String(),
		"database":  database,
	})
}

// GetPosition returns the published position and feed status
func (h *Handler) GetPosition(c *fiber.Ctx) error {
	snap := h.feed.Snapshot()
	snap.Position.Lng = utils.RoundTo(snap.Position.Lng, 6)
	snap.Position.Lat = utils.RoundTo(snap.Position.Lat, 6)

	return c.JSON(fiber.Map{
		"success": true,
		"data":    snap,
	})
}

// GetMarker returns the ground marker as a GeoJSON FeatureCollection
func (h *Handler) GetMarker(c *fiber.Ctx) error {
	return c.JSON(h.marker.FeatureCollection())
}

// GetTrack returns stored positions as a GeoJSON LineString
func (h *Handler) GetTrack(c *fiber.Ctx) error {
	hours := c.QueryInt("hours", 24)
	if hours < 1 || hours > 720 { // max 30 days
		hours = 24
	}

	to := time.Now()
	from := to.Add(-time.Duration(hours) * time.Hour)

	points, err := h.repo.GetTrack(c.Context(), from, to)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch track")
	}

	line := make(orb.LineString, 0, len(points))
	path := make([][2]float64, 0, len(points))
	for _, p := range points {
		line = append(line, orb.Point{p.Lng, p.Lat})
		path = append(path, p.LngLat())
	}
	distance := utils.RoundTo(utils.PathLength(path), 3)

	feature := geojson.NewFeature(line)
	feature.Properties["count"] = len(points)
	feature.Properties["distance_km"] = distance

	return c.JSON(fiber.Map{
		"success":     true,
		"data":        feature,
		"count":       len(points),
		"distance_km": distance,
	})
}

// RenderFrame draws one frame for the supplied camera matrix
func (h *Handler) RenderFrame(c *fiber.Ctx) error {
	var req domain.FrameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if len(req.Camera) != 16 {
		return fiber.NewError(fiber.StatusBadRequest, "camera must be a 16-element column-major matrix")
	}

	var camera [16]float64
	for i, v := range req.Camera {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fiber.NewError(fiber.StatusBadRequest, "camera matrix must be finite")
		}
		camera[i] = v
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    h.host.RenderFrame(camera),
	})
}

// GetLastFrame returns the most recent frame drawn by the host loop
func (h *Handler) GetLastFrame(c *fiber.Ctx) error {
	frame, count := h.host.LastFrame()
	return c.JSON(fiber.Map{
		"success": true,
		"data":    frame,
		"frames":  count,
	})
}

// TransitionUI applies a UI event to the supplied state
func (h *Handler) TransitionUI(c *fiber.Ctx) error {
	var req domain.UITransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	next, err := service.Transition(req.State, req.Event)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    next,
	})
}
