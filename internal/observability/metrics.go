package observability

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Poll outcomes used as the "outcome" label.
const (
	OutcomePublished = "published"
	OutcomeFailed    = "failed"
	OutcomeStale     = "stale"
)

// Collector bundles the Prometheus metrics for the position feed and the
// overlay render callback. A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Polls         *prometheus.CounterVec
	PollDurations prometheus.Histogram
	Latitude      prometheus.Gauge
	Longitude     prometheus.Gauge

	Frames       *prometheus.CounterVec
	RenderPanics prometheus.Counter
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	c.Polls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "position_feed_polls_total",
		Help: "Completed position feed polls, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	c.PollDurations, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "position_feed_poll_duration_seconds",
		Help:    "Position feed request latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}))
	if err != nil {
		return nil, err
	}
	c.Latitude, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "position_feed_latitude_degrees",
		Help: "Latitude of the last published position.",
	}))
	if err != nil {
		return nil, err
	}
	c.Longitude, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "position_feed_longitude_degrees",
		Help: "Longitude of the last published position.",
	}))
	if err != nil {
		return nil, err
	}
	c.Frames, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "overlay_frames_total",
		Help: "Render callbacks handled by the overlay, labeled by model readiness.",
	}, []string{"readiness"}))
	if err != nil {
		return nil, err
	}
	c.RenderPanics, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "overlay_render_panics_total",
		Help: "Render callbacks that panicked and were recovered.",
	}))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the gatherer backing the /metrics endpoint.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil || c.gatherer == nil {
		return prometheus.DefaultGatherer
	}
	return c.gatherer
}

// ObservePoll records one completed poll.
func (c *Collector) ObservePoll(outcome string, seconds float64) {
	if c == nil {
		return
	}
	c.Polls.WithLabelValues(outcome).Inc()
	c.PollDurations.Observe(seconds)
}

// SetPosition mirrors the published coordinate.
func (c *Collector) SetPosition(lng, lat float64) {
	if c == nil {
		return
	}
	c.Longitude.Set(lng)
	c.Latitude.Set(lat)
}

// ObserveFrame counts one render callback.
func (c *Collector) ObserveFrame(readiness string) {
	if c == nil {
		return
	}
	c.Frames.WithLabelValues(readiness).Inc()
}

// ObserveRenderPanic counts a recovered render panic.
func (c *Collector) ObserveRenderPanic() {
	if c == nil {
		return
	}
	c.RenderPanics.Inc()
}

// register adds col to reg, reusing an existing collector with the same
// descriptor so repeated construction against one registry is safe.
func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("observability: register collector: %w", err)
	}
	return col, nil
}
