package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
)

const (
	playlistLimit = 50
	trackLimit    = 100
	searchLimit   = 30

	playlistTrackFields = "items(track(id,name,duration_ms,uri,artists,album))"
)

// PlaylistsPath is the library listing request.
func PlaylistsPath() string {
	return fmt.Sprintf("/me/playlists?limit=%d", playlistLimit)
}

// PlaylistTracksPath is the track listing request for playlist id.
func PlaylistTracksPath(id string) string {
	return fmt.Sprintf("/playlists/%s/tracks?limit=%d&fields=%s", url.PathEscape(id), trackLimit, playlistTrackFields)
}

// SearchPath is the track search request for query.
func SearchPath(query string) string {
	return fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), searchLimit)
}

// Library reads playlists, playlist tracks and search results through a [Fetcher].
type Library struct {
	fetcher Fetcher
}

// NewLibrary creates a [Library] over f.
func NewLibrary(f Fetcher) *Library {
	return &Library{fetcher: f}
}

// Playlists lists the current user's playlists.
func (l *Library) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var page SpotifyPaginatedPlaylists
	if err := l.get(ctx, PlaylistsPath(), &page); err != nil {
		return nil, err
	}

	playlists := make([]models.Playlist, 0, len(page.Items))
	for _, p := range page.Items {
		playlists = append(playlists, p.ToModel())
	}
	return playlists, nil
}

// PlaylistTracks lists the playable tracks of playlist id, skipping entries without a track or URI.
func (l *Library) PlaylistTracks(ctx context.Context, id string) ([]models.Track, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	var page SpotifyPlaylistItems
	if err := l.get(ctx, PlaylistTracksPath(id), &page); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Track == nil || item.Track.URI == "" {
			continue
		}
		tracks = append(tracks, item.Track.ToModel())
	}
	return tracks, nil
}

// SearchTracks searches for tracks matching query. A blank query returns no results without a request.
func (l *Library) SearchTracks(ctx context.Context, query string) ([]models.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var result SpotifySearchResult
	if err := l.get(ctx, SearchPath(query), &result); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(result.Tracks.Items))
	for _, t := range result.Tracks.Items {
		tracks = append(tracks, t.ToModel())
	}
	return tracks, nil
}

func (l *Library) get(ctx context.Context, path string, v any) error {
	raw, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: failed to decode %s: %v", shared.ErrAPIRequest, path, err)
	}
	return nil
}
