package connect

import (
	"time"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/zmb3/spotify/v2"
)

// NowPlaying converts a player state read into a [models.NowPlaying] snapshot taken at at.
func NowPlaying(state *spotify.PlayerState, at time.Time) models.NowPlaying {
	np := models.NowPlaying{
		IsPlaying:  state.Playing,
		PositionMs: int(state.Progress),
		DeviceID:   string(state.Device.ID),
		DeviceName: state.Device.Name,
		Timestamp:  at,
	}
	if state.Item != nil {
		track := convertTrack(state.Item)
		np.Track = &track
		np.DurationMs = track.DurationMs
	}
	return np
}
