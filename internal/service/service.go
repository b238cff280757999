package service

import (
	"github.com/globeoverlay/backend/internal/domain"
)

// TrackRepository is re-exported from domain for convenience
type TrackRepository = domain.TrackRepository
