package domain

import (
	"context"
	"time"
)

// TrackRepository defines the interface for position persistence
// This follows the Dependency Inversion Principle - domain defines the interface
type TrackRepository interface {
	// SavePosition persists a published position
	SavePosition(ctx context.Context, p GeoPosition) error

	// GetTrack retrieves positions between from and to, oldest first
	GetTrack(ctx context.Context, from, to time.Time) ([]GeoPosition, error)

	// Health checks database connectivity
	Health(ctx context.Context) error
}
