package playback

import "github.com/desertthunder/tunedeck/internal/models"

// Status is the device readiness state.
type Status int

const (
	Disconnected Status = iota
	Connecting
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// PlaybackState is the locally rendered view of what the device is doing.
type PlaybackState struct {
	CurrentTrack *models.Track
	IsPlaying    bool
	PositionMs   int
	DurationMs   int
}

// TrackWindow is the device's view of the current, previous and next tracks.
type TrackWindow struct {
	Current  models.Track
	Previous []models.Track
	Next     []models.Track
}

// Notification is an authoritative playback snapshot reported by the device.
//
// A nil TrackWindow means nothing is loaded on the device.
type Notification struct {
	TrackWindow *TrackWindow
	Paused      bool
	PositionMs  int
	DurationMs  int
}

// Reconcile returns the state after applying n.
//
// Notifications without a track window are ignored; otherwise every field is replaced.
func Reconcile(prev PlaybackState, n *Notification) PlaybackState {
	if n == nil || n.TrackWindow == nil {
		return prev
	}

	track := n.TrackWindow.Current
	duration := n.DurationMs
	if duration == 0 {
		duration = track.DurationMs
	}

	return PlaybackState{
		CurrentTrack: &track,
		IsPlaying:    !n.Paused,
		PositionMs:   n.PositionMs,
		DurationMs:   duration,
	}
}
