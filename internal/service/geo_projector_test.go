package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/globeoverlay/backend/internal/domain"
)

// mercatorReference is the host's published lng/lat/altitude conversion,
// written out independently of orb.
func mercatorReference(lng, lat, alt float64) domain.ProjectedTransform {
	x := (180 + lng) / 360
	y := (180 - (180/math.Pi)*math.Log(math.Tan(math.Pi/4+lat*math.Pi/360))) / 360
	circ := 2 * math.Pi * 6371008.8 * math.Cos(lat*math.Pi/180)
	return domain.ProjectedTransform{TranslateX: x, TranslateY: y, TranslateZ: alt / circ, Scale: 1 / circ}
}

func TestProjectEquatorOrigin(t *testing.T) {
	got := Project(domain.GeoPosition{Lng: 0, Lat: 0}, 800000)

	require.InDelta(t, 0.5, got.TranslateX, 1e-12)
	require.InDelta(t, 0.5, got.TranslateY, 1e-12)
	require.InDelta(t, 800000/(2*math.Pi*6371008.8), got.TranslateZ, 1e-15)
	require.InDelta(t, 1/(2*math.Pi*6371008.8), got.Scale, 1e-20)
}

func TestProjectMatchesReference(t *testing.T) {
	for _, ca := range []struct {
		name     string
		lng, lat float64
	}{
		{"london", -0.1, 51.6},
		{"sydney", 151.2, -33.9},
		{"antimeridian", 180, 10},
		{"west edge", -180, -10},
	} {
		t.Run(ca.name, func(t *testing.T) {
			want := mercatorReference(ca.lng, ca.lat, domain.DefaultAltitudeMeters)
			got := Project(domain.GeoPosition{Lng: ca.lng, Lat: ca.lat}, domain.DefaultAltitudeMeters)

			require.InDelta(t, want.TranslateX, got.TranslateX, 1e-9)
			require.InDelta(t, want.TranslateY, got.TranslateY, 1e-9)
			require.InEpsilon(t, want.TranslateZ, got.TranslateZ, 1e-9)
			require.InEpsilon(t, want.Scale, got.Scale, 1e-9)
		})
	}
}

func TestProjectNorthIsUp(t *testing.T) {
	north := Project(domain.GeoPosition{Lat: 60}, 0)
	south := Project(domain.GeoPosition{Lat: -60}, 0)
	require.Less(t, north.TranslateY, 0.5)
	require.Greater(t, south.TranslateY, 0.5)
	require.InDelta(t, north.Scale, south.Scale, 1e-20)
}

func TestProjectPolePinnedToMercatorLimit(t *testing.T) {
	got := Project(domain.GeoPosition{Lat: 90}, 1000)
	require.False(t, math.IsInf(got.Scale, 0))
	require.False(t, math.IsNaN(got.TranslateY))
	require.InDelta(t, 0, got.TranslateY, 1e-6)
}

func TestProjectIsDeterministic(t *testing.T) {
	p := domain.GeoPosition{Lng: 12.34, Lat: -56.78}
	require.Equal(t, Project(p, 400000), Project(p, 400000))
}
