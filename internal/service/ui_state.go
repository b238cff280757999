package service

import (
	"fmt"

	"github.com/globeoverlay/backend/internal/domain"
	"github.com/globeoverlay/backend/pkg/utils"
)

// Zoom limits of the host map
const (
	DefaultZoom = 2.5
	MinZoom     = 0.0
	MaxZoom     = 22.0
)

// DefaultAppState is the state the UI starts in
func DefaultAppState() domain.AppState {
	return domain.AppState{Follow: true, Zoom: DefaultZoom}
}

// Transition applies a UI event to state and returns the new state.
// It has no side effects; the published position and feed status are
// never touched from here.
func Transition(state domain.AppState, event domain.UIEvent) (domain.AppState, error) {
	next := state
	next.Zoom = utils.Clamp(next.Zoom, MinZoom, MaxZoom)

	switch event {
	case domain.EventToggleFollow:
		next.Follow = !state.Follow
	case domain.EventResetView:
		next.Follow = true
		next.Zoom = DefaultZoom
	case domain.EventOpenPanel:
		next.PanelOpen = true
	case domain.EventClosePanel:
		next.PanelOpen = false
	default:
		return state, fmt.Errorf("ui: unknown event %q", event)
	}
	return next, nil
}
