package domain

import (
	"fmt"
	"math"
	"time"
)

// GeoPosition is a geographic coordinate in degrees
type GeoPosition struct {
	Lng       float64   `json:"lng"`
	Lat       float64   `json:"lat"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultAltitudeMeters is the fixed altitude every projection is done at
const DefaultAltitudeMeters = 800000.0

// Origin is the nominal coordinate used before any position is published
var Origin = GeoPosition{Lng: 0, Lat: 0}

// NewGeoPosition builds a validated position
func NewGeoPosition(lng, lat float64, ts time.Time) (GeoPosition, error) {
	p := GeoPosition{Lng: lng, Lat: lat, Timestamp: ts}
	if err := p.Validate(); err != nil {
		return GeoPosition{}, err
	}
	return p, nil
}

// Validate checks that both coordinates are finite and within range
func (p GeoPosition) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidPosition, p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidPosition, p.Lng)
	}
	return nil
}

// LngLat returns the coordinate in [lng, lat] order
func (p GeoPosition) LngLat() [2]float64 {
	return [2]float64{p.Lng, p.Lat}
}

// PositionSnapshot is the read-only view handed to UI consumers
type PositionSnapshot struct {
	Position    GeoPosition `json:"position"`
	HasPosition bool        `json:"has_position"`
	Status      string      `json:"status"`
	Label       string      `json:"label"`
	UpdatedAt   time.Time   `json:"updated_at"`
}
