package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/logging"
	"github.com/globeoverlay/backend/internal/observability"
)

// Host is the mapping engine side of the custom layer contract.
type Host interface {
	// TriggerRepaint asks the host to schedule another frame.
	TriggerRepaint()
}

// GraphicsContext is the drawing surface the host shares with the overlay
// for the duration of one frame. It must not be retained across frames.
type GraphicsContext interface {
	// ResetState clears state the host's own drawing may have left behind.
	ResetState()
	DrawMesh(model Drawable, world, projection mgl64.Mat4)
}

// CustomLayer is what the host calls into: OnAdd once, Render every frame.
type CustomLayer interface {
	OnAdd(host Host, gc GraphicsContext)
	Render(gc GraphicsContext, camera [16]float64) domain.FrameResult
}

// sceneObject is the placed model; its world matrix is rebuilt every frame.
type sceneObject struct {
	model            Drawable
	world            mgl64.Mat4
	matrixAutoUpdate bool
}

type scene struct {
	projection mgl64.Mat4
	object     *sceneObject
}

// OverlayLayerConfig configures an OverlayLayer
type OverlayLayerConfig struct {
	ID          string
	Positions   PositionSource
	Assets      SceneAssets
	Origin      domain.GeoPosition
	Altitude    float64
	LoadTimeout time.Duration
	Logger      logging.Logger
	Metrics     *observability.Collector
}

// OverlayLayer places a 3D model at the published position on every frame
// the host draws.
type OverlayLayer struct {
	id          string
	positions   PositionSource
	assets      SceneAssets
	origin      domain.GeoPosition
	altitude    float64
	loadTimeout time.Duration
	log         logging.Logger
	metrics     *observability.Collector

	readiness atomic.Int32
	loaded    atomic.Pointer[sceneObject]
	ready     chan struct{}
	host      atomic.Value // Host
}

// NewOverlayLayer creates an overlay layer in the uninitialized state
func NewOverlayLayer(cfg OverlayLayerConfig) *OverlayLayer {
	if cfg.ID == "" {
		cfg.ID = "3d-model"
	}
	if cfg.Altitude == 0 {
		cfg.Altitude = domain.DefaultAltitudeMeters
	}
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	return &OverlayLayer{
		id:          cfg.ID,
		positions:   cfg.Positions,
		assets:      cfg.Assets,
		origin:      cfg.Origin,
		altitude:    cfg.Altitude,
		loadTimeout: cfg.LoadTimeout,
		log:         cfg.Logger.With(logging.String("component", "overlay"), logging.String("layer", cfg.ID)),
		metrics:     cfg.Metrics,
		ready:       make(chan struct{}),
	}
}

// ID returns the layer identifier
func (l *OverlayLayer) ID() string { return l.id }

// Readiness returns the current asset state
func (l *OverlayLayer) Readiness() domain.ModelReadiness {
	return domain.ModelReadiness(l.readiness.Load())
}

// Ready is closed once the layer has a model to draw
func (l *OverlayLayer) Ready() <-chan struct{} { return l.ready }

// OnAdd starts loading the primary model. Only the first call has effect.
func (l *OverlayLayer) OnAdd(host Host, _ GraphicsContext) {
	if !l.readiness.CompareAndSwap(int32(domain.ReadinessUninitialized), int32(domain.ReadinessLoading)) {
		return
	}
	if host != nil {
		l.host.Store(host)
	}
	go l.loadAssets()
}

func (l *OverlayLayer) loadAssets() {
	ctx, cancel := context.WithTimeout(context.Background(), l.loadTimeout)
	defer cancel()

	var (
		model Drawable
		err   error
	)
	if l.assets == nil {
		err = fmt.Errorf("%w: no scene assets configured", domain.ErrAssetLoad)
	} else {
		model, err = l.assets.LoadPrimary(ctx)
	}

	next := domain.ReadinessReadyPrimary
	if err != nil || model == nil {
		l.log.Warn(ctx, "primary model unavailable, using fallback", logging.Err(err))
		model = FallbackModel()
		if l.assets != nil {
			model = l.assets.Fallback()
		}
		next = domain.ReadinessReadyFallback
	} else {
		l.log.Info(ctx, "primary model loaded", logging.String("model", model.Name()))
	}

	l.loaded.Store(&sceneObject{model: model, world: mgl64.Ident4(), matrixAutoUpdate: true})
	if l.readiness.CompareAndSwap(int32(domain.ReadinessLoading), int32(next)) {
		close(l.ready)
		// frames drawn while loading did not ask for a successor
		if h, ok := l.host.Load().(Host); ok {
			h.TriggerRepaint()
		}
	}
}

// Render places and draws the model for one frame. It never blocks on I/O
// and never lets a panic escape into the host's frame.
func (l *OverlayLayer) Render(gc GraphicsContext, camera [16]float64) (res domain.FrameResult) {
	readiness := l.Readiness()
	res.Readiness = readiness.String()
	res.Altitude = l.altitude
	l.metrics.ObserveFrame(res.Readiness)

	defer func() {
		if r := recover(); r != nil {
			l.metrics.ObserveRenderPanic()
			l.log.Error(context.Background(), "render panicked", logging.Any("panic", r))
			res.Drawn = false
		}
	}()

	if !readiness.Ready() {
		return res
	}
	obj := l.loaded.Load()
	if obj == nil || gc == nil {
		return res
	}

	pos := l.origin
	if p, ok := l.currentPosition(); ok {
		pos = p
	}
	res.Position = pos

	cam := mgl64.Mat4(camera)
	final := cam.Mul4(ModelTransform(Project(pos, l.altitude)))

	drawScene(gc, scene{
		projection: cam,
		object: &sceneObject{
			model:            obj.model,
			world:            final,
			matrixAutoUpdate: false,
		},
	})

	if h, ok := l.host.Load().(Host); ok {
		h.TriggerRepaint()
	}

	res.Drawn = true
	res.Model = obj.model.Name()
	res.ModelMatrix = [16]float64(final)
	return res
}

// drawScene issues the frame's draw calls. Scene state is built per frame
// and never shared, so render takes no locks.
func drawScene(gc GraphicsContext, sc scene) {
	gc.ResetState()
	gc.DrawMesh(sc.object.model, sc.object.world, sc.projection)
}

func (l *OverlayLayer) currentPosition() (domain.GeoPosition, bool) {
	if l.positions == nil {
		return domain.GeoPosition{}, false
	}
	return l.positions.Current()
}

// ModelTransform translates to the projected point and scales by the
// world-units-per-meter factor. Y is negated to turn the host's y-down world
// into the engine's y-up model space.
func ModelTransform(t domain.ProjectedTransform) mgl64.Mat4 {
	return mgl64.Translate3D(t.TranslateX, t.TranslateY, t.TranslateZ).
		Mul4(mgl64.Scale3D(t.Scale, -t.Scale, t.Scale))
}
