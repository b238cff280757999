package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/globeoverlay/backend/internal/domain"
)

func TestMockRepositoryTrack(t *testing.T) {
	ctx := context.Background()
	r := NewMockRepository(3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.SavePosition(ctx, domain.GeoPosition{
			Lng:       float64(i),
			Lat:       float64(i),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := r.GetTrack(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 2.0, all[0].Lng)
	require.Equal(t, 4.0, all[2].Lng)

	window, err := r.GetTrack(ctx, base.Add(3*time.Minute), base.Add(3*time.Minute))
	require.NoError(t, err)
	require.Len(t, window, 1)
	require.Equal(t, 3.0, window[0].Lat)

	require.NoError(t, r.Health(ctx))
}

func TestMockRepositoryStampsMissingTime(t *testing.T) {
	ctx := context.Background()
	r := NewMockRepository(0)
	require.NoError(t, r.SavePosition(ctx, domain.GeoPosition{Lng: 1, Lat: 1}))

	got, err := r.GetTrack(ctx, time.Now().Add(-time.Minute), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 1)
}
