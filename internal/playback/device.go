package playback

import "context"

// EventKind enumerates the device events.
type EventKind int

const (
	EventReady EventKind = iota
	EventNotReady
	EventStateChanged
	EventInitializationError
	EventAuthenticationError
	EventAccountError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventNotReady:
		return "not_ready"
	case EventStateChanged:
		return "state_changed"
	case EventInitializationError:
		return "initialization_error"
	case EventAuthenticationError:
		return "authentication_error"
	case EventAccountError:
		return "account_error"
	default:
		return "unknown"
	}
}

// Event is a device notification. DeviceID is set for ready and not_ready, State for state_changed,
// and Message for the error kinds.
type Event struct {
	Kind     EventKind
	DeviceID string
	State    *Notification
	Message  string
}

// Device is the playback capability the controller drives.
//
// Events may be delivered from any goroutine; callers relay them onto their own loop.
type Device interface {
	// Subscribe registers fn for every subsequent event and returns a function that removes it.
	Subscribe(fn func(Event)) (unsubscribe func())
	// Connect starts the device. Readiness and failures are reported as events.
	Connect(ctx context.Context) error
	Disconnect()

	Play(ctx context.Context, deviceID string, uris []string) error
	TogglePlay(ctx context.Context) error
	NextTrack(ctx context.Context) error
	PreviousTrack(ctx context.Context) error
	Seek(ctx context.Context, positionMs int) error
	// SetVolume takes a volume in [0, 1].
	SetVolume(ctx context.Context, volume float64) error
}
