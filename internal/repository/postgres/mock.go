package postgres

import (
	"context"
	"sync"
	"time"

	"github.com/globeoverlay/backend/internal/domain"
)

// MockRepository implements domain.TrackRepository in memory for demo mode.
// It keeps the most recent positions only.
type MockRepository struct {
	mu       sync.RWMutex
	capacity int
	points   []domain.GeoPosition
}

// NewMockRepository creates a new in-memory repository
func NewMockRepository(capacity int) *MockRepository {
	if capacity <= 0 {
		capacity = maxTrackRows
	}
	return &MockRepository{capacity: capacity}
}

// SavePosition appends p, dropping the oldest entry when full
func (r *MockRepository) SavePosition(ctx context.Context, p domain.GeoPosition) error {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.points = append(r.points, p)
	if over := len(r.points) - r.capacity; over > 0 {
		r.points = append(r.points[:0], r.points[over:]...)
	}
	return nil
}

// GetTrack returns stored positions between from and to, oldest first
func (r *MockRepository) GetTrack(ctx context.Context, from, to time.Time) ([]domain.GeoPosition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []domain.GeoPosition
	for _, p := range r.points {
		if p.Timestamp.Before(from) || p.Timestamp.After(to) {
			continue
		}
		results = append(results, p)
	}
	return results, nil
}

// Health always returns nil in mock mode
func (r *MockRepository) Health(ctx context.Context) error {
	return nil
}
