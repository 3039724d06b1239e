package models

import (
	"fmt"
	"strings"
	"time"
)

// Artist is a credited performer on a track.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Album is the release a track belongs to.
type Album struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url,omitempty"`
}

// Track is a playable item identified by its URI.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	URI        string   `json:"uri"`
	DurationMs int      `json:"duration_ms"`
	Artists    []Artist `json:"artists"`
	Album      Album    `json:"album"`
}

// ArtistNames joins the artist names with ", ".
func (t Track) ArtistNames() string {
	names := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// URIs returns the URIs of tracks in order.
func URIs(tracks []Track) []string {
	uris := make([]string, 0, len(tracks))
	for _, t := range tracks {
		uris = append(uris, t.URI)
	}
	return uris
}

// Playlist is a library entry.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
	TrackCount  int    `json:"track_count"`
	ImageURL    string `json:"image_url,omitempty"`
}

// NowPlaying is a snapshot of what a device is playing.
type NowPlaying struct {
	Track      *Track    `json:"track"`
	IsPlaying  bool      `json:"is_playing"`
	PositionMs int       `json:"position_ms"`
	DurationMs int       `json:"duration_ms"`
	DeviceID   string    `json:"device_id"`
	DeviceName string    `json:"device_name"`
	Timestamp  time.Time `json:"timestamp"`
}

// Play is one entry of play history.
type Play struct {
	ID         string    `json:"id"`
	Sequence   int       `json:"sequence"`
	TrackID    string    `json:"track_id"`
	URI        string    `json:"uri"`
	Name       string    `json:"name"`
	Artists    string    `json:"artists"`
	Album      string    `json:"album"`
	DurationMs int       `json:"duration_ms"`
	DeviceID   string    `json:"device_id"`
	PlayedAt   time.Time `json:"played_at"`
}

// NewPlay builds a history entry for track played at t on deviceID.
func NewPlay(track Track, deviceID string, t time.Time) *Play {
	return &Play{
		TrackID:    track.ID,
		URI:        track.URI,
		Name:       track.Name,
		Artists:    track.ArtistNames(),
		Album:      track.Album.Name,
		DurationMs: track.DurationMs,
		DeviceID:   deviceID,
		PlayedAt:   t,
	}
}

// Validate checks the fields the history table requires.
func (p *Play) Validate() error {
	if p.TrackID == "" {
		return fmt.Errorf("track_id is required")
	}
	if p.URI == "" {
		return fmt.Errorf("uri is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.PlayedAt.IsZero() {
		return fmt.Errorf("played_at is required")
	}
	return nil
}
