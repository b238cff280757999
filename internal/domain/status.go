package domain

// ConnectivityStatus describes the health of the position feed
type ConnectivityStatus int

const (
	StatusConnecting ConnectivityStatus = iota
	StatusConnected
	StatusError
)

func (s ConnectivityStatus) String() string {
	switch s {
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "connecting"
	}
}

// Label returns the human-readable text shown next to the indicator
func (s ConnectivityStatus) Label() string {
	switch s {
	case StatusConnected:
		return "Live"
	case StatusError:
		return "Connection error"
	default:
		return "Connecting..."
	}
}

// ModelReadiness tracks the overlay's asset lifecycle
type ModelReadiness int32

const (
	ReadinessUninitialized ModelReadiness = iota
	ReadinessLoading
	ReadinessReadyPrimary
	ReadinessReadyFallback
)

func (r ModelReadiness) String() string {
	switch r {
	case ReadinessLoading:
		return "loading"
	case ReadinessReadyPrimary:
		return "ready-primary"
	case ReadinessReadyFallback:
		return "ready-fallback"
	default:
		return "uninitialized"
	}
}

// Ready reports whether the overlay has something to draw
func (r ModelReadiness) Ready() bool {
	return r == ReadinessReadyPrimary || r == ReadinessReadyFallback
}
