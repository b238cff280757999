package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/globeoverlay/backend/internal/clock"
	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/internal/observability"
)

func staticServer(t *testing.T, status int, body string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPollOncePublishesNumericStrings(t *testing.T) {
	srv := staticServer(t, http.StatusOK, `{"latitude":"51.6","longitude":"-0.1"}`)
	marker := NewMarkerSource(domain.Origin)
	f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL, Marker: marker})

	require.NoError(t, f.PollOnce(context.Background()))

	pos, ok := f.Current()
	require.True(t, ok)
	require.Equal(t, 51.6, pos.Lat)
	require.Equal(t, -0.1, pos.Lng)

	status, label := f.Status()
	require.Equal(t, domain.StatusConnected, status)
	require.Equal(t, "Live", label)

	require.Equal(t, -0.1, marker.Point()[0])
	require.Equal(t, 51.6, marker.Point()[1])
}

func TestPollOnceAcceptsPayloadShapes(t *testing.T) {
	for _, ca := range []struct {
		name     string
		body     string
		lng, lat float64
		ts       int64
	}{
		{"numbers", `{"latitude":12.5,"longitude":100.25}`, 100.25, 12.5, 0},
		{"nested strings", `{"message":"success","timestamp":1700000000,"iss_position":{"latitude":"-33.9","longitude":"151.2"}}`, 151.2, -33.9, 1700000000},
		{"padded string", `{"latitude":" 45 ","longitude":"-180"}`, -180, 45, 0},
		{"extra fields", `{"name":"iss","id":25544,"latitude":0,"longitude":0,"altitude":420.1}`, 0, 0, 0},
		{"iso timestamp", `{"latitude":"51.6","longitude":"-0.1","timestamp":"2024-05-01T12:00:00Z"}`, -0.1, 51.6, 1714564800},
		{"string unix timestamp", `{"latitude":"1","longitude":"2","timestamp":"1700000000"}`, 2, 1, 1700000000},
		{"unparseable timestamp", `{"latitude":"1","longitude":"2","timestamp":{"at":"noon"}}`, 2, 1, 0},
	} {
		t.Run(ca.name, func(t *testing.T) {
			srv := staticServer(t, http.StatusOK, ca.body)
			f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL})

			require.NoError(t, f.PollOnce(context.Background()))
			pos, ok := f.Current()
			require.True(t, ok)
			require.Equal(t, ca.lng, pos.Lng)
			require.Equal(t, ca.lat, pos.Lat)
			if ca.ts != 0 {
				require.Equal(t, ca.ts, pos.Timestamp.Unix())
			}
		})
	}
}

func TestPollOnceFailureKeepsPreviousPosition(t *testing.T) {
	var body atomic.Value
	body.Store(`{"latitude":"51.6","longitude":"-0.1"}`)
	var status atomic.Int32
	status.Store(http.StatusOK)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		fmt.Fprint(w, body.Load().(string))
	}))
	defer srv.Close()

	f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL})
	require.NoError(t, f.PollOnce(context.Background()))
	before, _ := f.Current()

	for _, ca := range []struct {
		name   string
		status int
		body   string
	}{
		{"missing latitude", http.StatusOK, `{"longitude":"10"}`},
		{"missing longitude", http.StatusOK, `{"latitude":"10"}`},
		{"null field", http.StatusOK, `{"latitude":null,"longitude":"10"}`},
		{"non numeric", http.StatusOK, `{"latitude":"north","longitude":"10"}`},
		{"boolean", http.StatusOK, `{"latitude":true,"longitude":"10"}`},
		{"out of range", http.StatusOK, `{"latitude":"91","longitude":"10"}`},
		{"not finite", http.StatusOK, `{"latitude":"NaN","longitude":"10"}`},
		{"not json", http.StatusOK, `<html>`},
		{"server error", http.StatusInternalServerError, `{"latitude":"1","longitude":"2"}`},
	} {
		t.Run(ca.name, func(t *testing.T) {
			status.Store(int32(ca.status))
			body.Store(ca.body)

			err := f.PollOnce(context.Background())
			require.ErrorIs(t, err, domain.ErrFetch)

			after, ok := f.Current()
			require.True(t, ok)
			require.Equal(t, before, after)

			st, label := f.Status()
			require.Equal(t, domain.StatusError, st)
			require.Equal(t, "Connection error", label)
		})
	}
}

func TestPollOnceNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewCollector(reg)
	require.NoError(t, err)

	f := NewPositionFeed(PositionFeedConfig{Endpoint: url, Metrics: metrics})
	require.ErrorIs(t, f.PollOnce(context.Background()), domain.ErrFetch)

	_, ok := f.Current()
	require.False(t, ok)
	st, _ := f.Status()
	require.Equal(t, domain.StatusError, st)
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Polls.WithLabelValues(observability.OutcomeFailed)))
}

func TestStartWithoutEndpointIsDegraded(t *testing.T) {
	var got []domain.PositionSnapshot
	f := NewPositionFeed(PositionFeedConfig{})
	f.Subscribe(func(s domain.PositionSnapshot) { got = append(got, s) })

	err := f.Start(context.Background())
	require.ErrorIs(t, err, domain.ErrConfig)

	st, label := f.Status()
	require.Equal(t, domain.StatusError, st)
	require.Equal(t, "Feed not configured", label)
	require.Len(t, got, 1)
	require.False(t, got[0].HasPosition)
}

func TestStartPollsImmediatelyThenOnCadence(t *testing.T) {
	var (
		hits    atomic.Int32
		blocked = make(chan struct{})
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		if n == 2 {
			// a hung request must not delay the next tick
			select {
			case <-blocked:
			case <-r.Context().Done():
			}
		}
		fmt.Fprint(w, `{"latitude":"1","longitude":"2"}`)
	}))
	defer srv.Close()
	defer close(blocked)

	clk := clock.NewManual(time.Unix(0, 0))
	f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL, Clock: clk, Interval: 2 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer f.Wait()
	defer cancel()

	require.NoError(t, f.Start(ctx))
	require.Equal(t, 1, clk.Tickers())

	require.Eventually(t, func() bool { return hits.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	clk.Advance(1999 * time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(1), hits.Load())

	clk.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return hits.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	clk.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return hits.Load() == 3 }, 2*time.Second, 5*time.Millisecond)

	clk.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return hits.Load() == 4 }, 2*time.Second, 5*time.Millisecond)

	require.Error(t, f.Start(ctx))
}

// overlapServer holds each request until the test releases it by arrival index.
type overlapServer struct {
	*httptest.Server
	arrived  chan int
	releases [2]chan struct{}
	hits     atomic.Int32
}

func newOverlapServer(t *testing.T, bodies [2]string) *overlapServer {
	s := &overlapServer{arrived: make(chan int, 2)}
	for i := range s.releases {
		s.releases[i] = make(chan struct{})
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(s.hits.Add(1)) - 1
		s.arrived <- n
		<-s.releases[n]
		fmt.Fprint(w, bodies[n])
	}))
	t.Cleanup(s.Close)
	return s
}

func TestOverlappingPollsNeverRegress(t *testing.T) {
	for _, ca := range []struct {
		name         string
		releaseOrder [2]int
		firstLat     float64
		firstErr     error
	}{
		{"earlier request finishes last", [2]int{1, 0}, 20, ErrStaleResponse},
		{"earlier request finishes first", [2]int{0, 1}, 10, nil},
	} {
		t.Run(ca.name, func(t *testing.T) {
			srv := newOverlapServer(t, [2]string{
				`{"latitude":"10","longitude":"10"}`,
				`{"latitude":"20","longitude":"20"}`,
			})
			marker := NewMarkerSource(domain.Origin)
			f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL, Marker: marker})

			var (
				wg   sync.WaitGroup
				errs [2]error
			)
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					errs[i] = f.PollOnce(context.Background())
				}(i)
				require.Equal(t, i, <-srv.arrived)
			}

			close(srv.releases[ca.releaseOrder[0]])
			require.Eventually(t, func() bool {
				pos, ok := f.Current()
				return ok && pos.Lat == ca.firstLat
			}, time.Second, 5*time.Millisecond)

			close(srv.releases[ca.releaseOrder[1]])
			wg.Wait()

			if ca.firstErr != nil {
				require.ErrorIs(t, errs[0], ca.firstErr)
			} else {
				require.NoError(t, errs[0])
			}
			require.NoError(t, errs[1])

			pos, ok := f.Current()
			require.True(t, ok)
			require.Equal(t, 20.0, pos.Lat)
			require.Equal(t, 20.0, pos.Lng)
			require.Equal(t, orb.Point{pos.Lng, pos.Lat}, marker.Point())
		})
	}
}

func TestSlowFeedStillPublishes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(150 * time.Millisecond):
		case <-r.Context().Done():
			return
		}
		fmt.Fprint(w, `{"latitude":"7","longitude":"8"}`)
	}))
	defer srv.Close()

	f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL, Interval: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer f.Wait()
	defer cancel()
	require.NoError(t, f.Start(ctx))

	require.Eventually(t, func() bool {
		_, ok := f.Current()
		return ok
	}, 3*time.Second, 10*time.Millisecond)

	st, label := f.Status()
	require.Equal(t, domain.StatusConnected, st)
	require.Equal(t, "Live", label)
}

func TestStaleFailureDoesNotOverrideNewerSuccess(t *testing.T) {
	f := NewPositionFeed(PositionFeedConfig{})
	older, newer := f.issue(), f.issue()

	pos := domain.GeoPosition{Lng: 1, Lat: 2}
	require.NoError(t, f.complete(context.Background(), newer, pos, nil, 0))
	err := f.complete(context.Background(), older, domain.GeoPosition{}, errors.New("timeout"), 0)
	require.ErrorIs(t, err, ErrStaleResponse)

	st, _ := f.Status()
	require.Equal(t, domain.StatusConnected, st)
	got, _ := f.Current()
	require.Equal(t, pos, got)
}

type recordingRepo struct {
	mu    sync.Mutex
	saved []domain.GeoPosition
}

func (r *recordingRepo) SavePosition(_ context.Context, p domain.GeoPosition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, p)
	return nil
}

func (r *recordingRepo) GetTrack(context.Context, time.Time, time.Time) ([]domain.GeoPosition, error) {
	return nil, nil
}

func (r *recordingRepo) Health(context.Context) error { return nil }

func TestPublishedPositionsArePersistedAndNotified(t *testing.T) {
	srv := staticServer(t, http.StatusOK, `{"latitude":"5","longitude":"6"}`)
	repo := &recordingRepo{}
	f := NewPositionFeed(PositionFeedConfig{Endpoint: srv.URL, Repo: repo})

	var snaps []domain.PositionSnapshot
	f.Subscribe(func(s domain.PositionSnapshot) { snaps = append(snaps, s) })

	require.NoError(t, f.PollOnce(context.Background()))
	f.Wait()

	require.Len(t, repo.saved, 1)
	require.Equal(t, 5.0, repo.saved[0].Lat)

	require.Len(t, snaps, 1)
	require.True(t, snaps[0].HasPosition)
	require.Equal(t, "connected", snaps[0].Status)
	require.Equal(t, f.Snapshot().Position, snaps[0].Position)
}
