package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/globeoverlay/backend/internal/clock"
	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/logging"
)

// DrawCall is one mesh the overlay drew during a frame
type DrawCall struct {
	Model      string
	World      mgl64.Mat4
	Projection mgl64.Mat4
	CleanState bool
}

// RecordingContext is a GraphicsContext that records draw calls instead of
// rasterizing. Host drawing marks the state dirty at the start of a frame.
type RecordingContext struct {
	dirty bool
	calls []DrawCall
}

// BeginFrame simulates the host's own drawing for a new frame
func (c *RecordingContext) BeginFrame() {
	c.dirty = true
	c.calls = c.calls[:0]
}

func (c *RecordingContext) ResetState() { c.dirty = false }

func (c *RecordingContext) DrawMesh(model Drawable, world, projection mgl64.Mat4) {
	c.calls = append(c.calls, DrawCall{
		Model:      model.Name(),
		World:      world,
		Projection: projection,
		CleanState: !c.dirty,
	})
}

// Calls returns the draw calls of the current frame
func (c *RecordingContext) Calls() []DrawCall {
	return append([]DrawCall(nil), c.calls...)
}

// FrameHost drives a custom layer the way a map engine does: OnAdd once,
// then Render whenever a repaint has been requested. Frames are serialized.
type FrameHost struct {
	clock    clock.Clock
	interval time.Duration
	log      logging.Logger

	mu     sync.Mutex
	layer  CustomLayer
	gc     *RecordingContext
	camera [16]float64
	last   domain.FrameResult
	frames uint64

	repaint atomic.Bool
}

// NewFrameHost creates a host drawing at most fps frames per second
func NewFrameHost(fps int, clk clock.Clock, logger logging.Logger) *FrameHost {
	if fps <= 0 {
		fps = 30
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.Noop()
	}
	return &FrameHost{
		clock:    clk,
		interval: time.Second / time.Duration(fps),
		log:      logger.With(logging.String("component", "frame_host")),
		gc:       &RecordingContext{},
		camera:   [16]float64(mgl64.Ident4()),
	}
}

// AddLayer attaches the layer and schedules the first frame
func (h *FrameHost) AddLayer(l CustomLayer) {
	h.mu.Lock()
	h.layer = l
	h.mu.Unlock()

	l.OnAdd(h, h.gc)
	h.TriggerRepaint()
}

// TriggerRepaint implements Host
func (h *FrameHost) TriggerRepaint() { h.repaint.Store(true) }

// SetCamera replaces the camera used by scheduled frames
func (h *FrameHost) SetCamera(camera [16]float64) {
	h.mu.Lock()
	h.camera = camera
	h.mu.Unlock()
	h.TriggerRepaint()
}

// RenderFrame draws one frame with the given camera and returns the result
func (h *FrameHost) RenderFrame(camera [16]float64) domain.FrameResult {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.camera = camera
	if h.layer == nil {
		return domain.FrameResult{Readiness: domain.ReadinessUninitialized.String()}
	}
	h.gc.BeginFrame()
	h.last = h.layer.Render(h.gc, camera)
	h.frames++
	return h.last
}

// LastFrame returns the most recent frame result and the frame count
func (h *FrameHost) LastFrame() (domain.FrameResult, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.frames
}

// Calls returns the draw calls of the most recent frame
func (h *FrameHost) Calls() []DrawCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gc.Calls()
}

// Run draws a frame on every tick for which a repaint is pending
func (h *FrameHost) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.interval)
	defer ticker.Stop()

	h.log.Info(ctx, "frame host started", logging.String("interval", h.interval.String()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if !h.repaint.CompareAndSwap(true, false) {
				continue
			}
			h.mu.Lock()
			camera := h.camera
			h.mu.Unlock()
			h.RenderFrame(camera)
		}
	}
}
