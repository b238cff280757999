package domain

// UIEvent is a user interaction with the overlay controls
type UIEvent string

const (
	EventToggleFollow UIEvent = "toggle-follow"
	EventResetView    UIEvent = "reset-view"
	EventOpenPanel    UIEvent = "open-panel"
	EventClosePanel   UIEvent = "close-panel"
)

// AppState holds the UI flags that used to live in globals
type AppState struct {
	Follow    bool    `json:"follow"`
	PanelOpen bool    `json:"panel_open"`
	Zoom      float64 `json:"zoom"`
}

// UITransitionRequest is the body accepted by the transition endpoint
type UITransitionRequest struct {
	State AppState `json:"state"`
	Event UIEvent  `json:"event"`
}
