package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/globeoverlay/backend/internal/clock"
	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/logging"
	"github.com/globeoverlay/backend/internal/observability"
)

// DefaultPollInterval is the constant delay between polls. There is no
// backoff: a failing feed is retried at the same cadence.
const DefaultPollInterval = 2 * time.Second

const maxFeedBody = 1 << 20

// ErrStaleResponse is returned for a completed fetch that was issued before
// an already applied one. Its result is discarded.
var ErrStaleResponse = errors.New("position feed: response superseded by a newer request")

// StatusListener is notified after every accepted poll completion
type StatusListener func(domain.PositionSnapshot)

// PositionSource is the read side of the published position register
type PositionSource interface {
	Current() (domain.GeoPosition, bool)
}

// PositionFeedConfig configures a PositionFeed. Only Endpoint is required for
// polling; everything else has a default.
type PositionFeedConfig struct {
	Endpoint   string
	Interval   time.Duration
	HTTPClient *http.Client
	Clock      clock.Clock
	Logger     logging.Logger
	Metrics    *observability.Collector
	Marker     *MarkerSource
	Repo       TrackRepository
}

// PositionFeed polls the remote position endpoint and publishes the latest
// valid position in a single-slot register.
type PositionFeed struct {
	endpoint   string
	interval   time.Duration
	httpClient *http.Client
	clock      clock.Clock
	log        logging.Logger
	metrics    *observability.Collector
	marker     *MarkerSource
	repo       TrackRepository

	current atomic.Pointer[domain.GeoPosition]

	mu        sync.Mutex
	issued    uint64 // token of the most recently issued request
	applied   uint64 // token of the most recently applied completion
	status    domain.ConnectivityStatus
	label     string
	updatedAt time.Time
	listeners []StatusListener

	started  atomic.Bool
	inflight sync.WaitGroup
	wgBg     sync.WaitGroup // tracks background persistence for graceful shutdown
}

// NewPositionFeed creates a position feed
func NewPositionFeed(cfg PositionFeedConfig) *PositionFeed {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Noop()
	}
	return &PositionFeed{
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		interval:   cfg.Interval,
		httpClient: cfg.HTTPClient,
		clock:      cfg.Clock,
		log:        cfg.Logger.With(logging.String("component", "position_feed")),
		metrics:    cfg.Metrics,
		marker:     cfg.Marker,
		repo:       cfg.Repo,
		status:     domain.StatusConnecting,
		label:      domain.StatusConnecting.Label(),
	}
}

// Subscribe registers a listener for status and position changes
func (f *PositionFeed) Subscribe(l StatusListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

// Start begins polling: once immediately, then every interval until ctx is
// done. Without an endpoint the feed stays in a degraded error state and the
// returned error wraps domain.ErrConfig; the process is expected to carry on.
func (f *PositionFeed) Start(ctx context.Context) error {
	if f.endpoint == "" {
		f.log.Error(ctx, "position feed endpoint is not configured, polling disabled")
		f.setStatus(domain.StatusError, "Feed not configured")
		return fmt.Errorf("%w: position feed endpoint is empty", domain.ErrConfig)
	}
	if !f.started.CompareAndSwap(false, true) {
		return errors.New("position feed: already started")
	}

	ticker := f.clock.NewTicker(f.interval)
	f.launch(ctx)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				f.launch(ctx)
			}
		}
	}()

	f.log.Info(ctx, "position feed started",
		logging.String("endpoint", f.endpoint),
		logging.String("interval", f.interval.String()))
	return nil
}

// launch runs one poll on its own goroutine so the cadence never waits on a
// slow response.
func (f *PositionFeed) launch(ctx context.Context) {
	f.inflight.Add(1)
	go func() {
		defer f.inflight.Done()
		_ = f.PollOnce(ctx)
	}()
}

// PollOnce issues one request and publishes its result unless a request
// issued after it has already completed. Failures are contained: they set
// the status to error, leave the published position untouched and are
// returned for the caller's information only.
func (f *PositionFeed) PollOnce(ctx context.Context) error {
	token := f.issue()
	start := time.Now()

	pos, err := f.fetch(ctx)
	return f.complete(ctx, token, pos, err, time.Since(start).Seconds())
}

func (f *PositionFeed) issue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issued++
	return f.issued
}

func (f *PositionFeed) complete(ctx context.Context, token uint64, pos domain.GeoPosition, fetchErr error, seconds float64) error {
	f.mu.Lock()
	if token <= f.applied {
		f.mu.Unlock()
		f.metrics.ObservePoll(observability.OutcomeStale, seconds)
		f.log.Debug(ctx, "discarding superseded response", logging.Uint64("token", token))
		return ErrStaleResponse
	}
	f.applied = token

	if fetchErr != nil {
		f.status = domain.StatusError
		f.label = domain.StatusError.Label()
		f.updatedAt = f.clock.Now()
		snap, listeners := f.snapshotLocked(), f.listenersLocked()
		f.mu.Unlock()

		f.metrics.ObservePoll(observability.OutcomeFailed, seconds)
		f.log.Warn(ctx, "position poll failed", logging.Err(fetchErr))
		notify(listeners, snap)
		return fetchErr
	}

	published := pos
	f.current.Store(&published)
	if f.marker != nil {
		f.marker.Update(published)
	}
	f.metrics.SetPosition(published.Lng, published.Lat)
	f.status = domain.StatusConnected
	f.label = domain.StatusConnected.Label()
	f.updatedAt = f.clock.Now()
	snap, listeners := f.snapshotLocked(), f.listenersLocked()
	f.mu.Unlock()

	f.metrics.ObservePoll(observability.OutcomePublished, seconds)
	f.log.Debug(ctx, "position published",
		logging.Float("lng", published.Lng), logging.Float("lat", published.Lat))
	notify(listeners, snap)
	f.persist(published)
	return nil
}

// persist stores the fix asynchronously (tracked for graceful shutdown)
func (f *PositionFeed) persist(p domain.GeoPosition) {
	if f.repo == nil {
		return
	}
	f.wgBg.Add(1)
	go func() {
		defer f.wgBg.Done()
		bgCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := f.repo.SavePosition(bgCtx, p); err != nil {
			f.log.Warn(bgCtx, "failed to save position", logging.Err(err))
		}
	}()
}

// Current returns the last published position, if any
func (f *PositionFeed) Current() (domain.GeoPosition, bool) {
	p := f.current.Load()
	if p == nil {
		return domain.GeoPosition{}, false
	}
	return *p, true
}

// Status returns the connectivity status and its label
func (f *PositionFeed) Status() (domain.ConnectivityStatus, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.label
}

// Snapshot returns position and status together for UI consumers
func (f *PositionFeed) Snapshot() domain.PositionSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Wait blocks until in-flight polls and background saves complete.
// Call during graceful shutdown after cancelling the Start context.
func (f *PositionFeed) Wait() {
	f.inflight.Wait()
	f.wgBg.Wait()
}

func (f *PositionFeed) setStatus(s domain.ConnectivityStatus, label string) {
	f.mu.Lock()
	f.status = s
	f.label = label
	f.updatedAt = f.clock.Now()
	snap, listeners := f.snapshotLocked(), f.listenersLocked()
	f.mu.Unlock()
	notify(listeners, snap)
}

func (f *PositionFeed) snapshotLocked() domain.PositionSnapshot {
	snap := domain.PositionSnapshot{
		Status:    f.status.String(),
		Label:     f.label,
		UpdatedAt: f.updatedAt,
	}
	if p := f.current.Load(); p != nil {
		snap.Position = *p
		snap.HasPosition = true
	}
	return snap
}

func (f *PositionFeed) listenersLocked() []StatusListener {
	return append([]StatusListener(nil), f.listeners...)
}

func notify(listeners []StatusListener, snap domain.PositionSnapshot) {
	for _, l := range listeners {
		l(snap)
	}
}

// fetch performs the HTTP request and validates the payload. Every failure
// wraps domain.ErrFetch.
func (f *PositionFeed) fetch(ctx context.Context) (domain.GeoPosition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.endpoint, nil)
	if err != nil {
		return domain.GeoPosition{}, fmt.Errorf("%w: create request: %w", domain.ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return domain.GeoPosition{}, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.GeoPosition{}, fmt.Errorf("%w: unexpected status %d", domain.ErrFetch, resp.StatusCode)
	}

	var payload feedPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBody)).Decode(&payload); err != nil {
		return domain.GeoPosition{}, fmt.Errorf("%w: decode response: %w", domain.ErrFetch, err)
	}

	lat, lng := payload.Latitude, payload.Longitude
	if payload.ISSPosition != nil && (lat == nil || lng == nil) {
		lat, lng = payload.ISSPosition.Latitude, payload.ISSPosition.Longitude
	}
	if lat == nil || lng == nil {
		return domain.GeoPosition{}, fmt.Errorf("%w: latitude/longitude missing from response", domain.ErrFetch)
	}

	ts, ok := parseTimestamp(payload.Timestamp)
	if !ok {
		ts = f.clock.Now()
	}

	pos, err := domain.NewGeoPosition(float64(*lng), float64(*lat), ts)
	if err != nil {
		return domain.GeoPosition{}, fmt.Errorf("%w: %w", domain.ErrFetch, err)
	}
	return pos, nil
}

// feedPayload accepts either top-level coordinates or the nested
// iss_position object.
type feedPayload struct {
	Latitude    *coordinate     `json:"latitude"`
	Longitude   *coordinate     `json:"longitude"`
	Timestamp   json.RawMessage `json:"timestamp"`
	ISSPosition *struct {
		Latitude  *coordinate `json:"latitude"`
		Longitude *coordinate `json:"longitude"`
	} `json:"iss_position"`
}

// parseTimestamp reads unix seconds (number or numeric string) or an RFC 3339
// string. Anything else is ignored rather than failing the poll.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}
	var c coordinate
	if err := json.Unmarshal(raw, &c); err == nil {
		if c > 0 && c < 1e11 {
			return time.Unix(int64(c), 0).UTC(), true
		}
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(s)); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// coordinate decodes from a JSON number or a numeric string
type coordinate float64

func (c *coordinate) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("coordinate %s is not numeric", string(b))
	}
	*c = coordinate(v)
	return nil
}
