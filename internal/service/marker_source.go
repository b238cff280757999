package service

import (
	"sync/atomic"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/globeoverlay/backend/internal/domain"
)

// MarkerSource is the ground-marker point feed the host draws in 2D.
// Each update swaps in a fresh FeatureCollection; published collections are
// never mutated.
type MarkerSource struct {
	fc atomic.Pointer[geojson.FeatureCollection]
}

// NewMarkerSource creates a marker source positioned at initial
func NewMarkerSource(initial domain.GeoPosition) *MarkerSource {
	m := &MarkerSource{}
	m.Update(initial)
	return m
}

// Update moves the marker to p
func (m *MarkerSource) Update(p domain.GeoPosition) {
	f := geojson.NewFeature(orb.Point{p.Lng, p.Lat})
	f.Properties["kind"] = "ground-marker"
	if !p.Timestamp.IsZero() {
		f.Properties["timestamp"] = p.Timestamp.Unix()
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	m.fc.Store(fc)
}

// FeatureCollection returns the current marker collection; callers must not modify it
func (m *MarkerSource) FeatureCollection() *geojson.FeatureCollection {
	return m.fc.Load()
}

// Point returns the marker coordinate as [lng, lat]
func (m *MarkerSource) Point() orb.Point {
	fc := m.fc.Load()
	if fc == nil || len(fc.Features) == 0 {
		return orb.Point{}
	}
	p, _ := fc.Features[0].Geometry.(orb.Point)
	return p
}
