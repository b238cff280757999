package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/globeoverlay/backend/internal/domain"
)

func TestTransition(t *testing.T) {
	for _, ca := range []struct {
		name  string
		in    domain.AppState
		event domain.UIEvent
		out   domain.AppState
	}{
		{"toggle follow off", domain.AppState{Follow: true, Zoom: 4}, domain.EventToggleFollow, domain.AppState{Follow: false, Zoom: 4}},
		{"toggle follow on", domain.AppState{Zoom: 4}, domain.EventToggleFollow, domain.AppState{Follow: true, Zoom: 4}},
		{"reset view", domain.AppState{PanelOpen: true, Zoom: 9}, domain.EventResetView, domain.AppState{Follow: true, PanelOpen: true, Zoom: DefaultZoom}},
		{"open panel", domain.AppState{Zoom: 3}, domain.EventOpenPanel, domain.AppState{PanelOpen: true, Zoom: 3}},
		{"close panel", domain.AppState{PanelOpen: true, Zoom: 3}, domain.EventClosePanel, domain.AppState{Zoom: 3}},
		{"zoom clamped", domain.AppState{Zoom: 40}, domain.EventOpenPanel, domain.AppState{PanelOpen: true, Zoom: MaxZoom}},
	} {
		t.Run(ca.name, func(t *testing.T) {
			in := ca.in
			out, err := Transition(in, ca.event)
			require.NoError(t, err)
			require.Equal(t, ca.out, out)
			require.Equal(t, ca.in, in)
		})
	}
}

func TestTransitionUnknownEvent(t *testing.T) {
	s := DefaultAppState()
	out, err := Transition(s, "fly-away")
	require.Error(t, err)
	require.Equal(t, s, out)
}
