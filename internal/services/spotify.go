// Spotify accounts and Web API access
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
	"golang.org/x/oauth2"
)

const (
	AccountsAuthURL  = "https://accounts.spotify.com/authorize"
	AccountsTokenURL = "https://accounts.spotify.com/api/token"
	WebAPIBaseURL    = "https://api.spotify.com/v1"
)

// PlayerScopes are the grants the player needs for browsing and device control.
var PlayerScopes = []string{
	"streaming",
	"user-read-email",
	"user-read-private",
	"user-read-playback-state",
	"user-modify-playback-state",
	"playlist-read-private",
	"playlist-read-collaborative",
}

// NewOAuthConfig builds the authorization code flow configuration.
//
// Client credentials travel as a Basic authorization header.
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       PlayerScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   AccountsAuthURL,
			TokenURL:  AccountsTokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

// ProxyOpts configures a [Proxy].
type ProxyOpts struct {
	Tokens     TokenProvider
	BaseURL    string
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Proxy forwards read-only GETs to the Web API with a bearer token from a [TokenProvider].
//
// Responses are never cached.
type Proxy struct {
	tokens  TokenProvider
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewProxy creates a [Proxy], defaulting the base URL, HTTP client and logger.
func NewProxy(opts ProxyOpts) *Proxy {
	if opts.BaseURL == "" {
		opts.BaseURL = WebAPIBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Proxy{
		tokens:  opts.Tokens,
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		client:  opts.HTTPClient,
		logger:  shared.WithLogger(opts.Logger, "component", "proxy"),
	}
}

// Fetch GETs baseURL+path and returns the body verbatim.
//
// An empty body is returned as JSON null. Non-2xx statuses become [shared.UpstreamError].
func (p *Proxy) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	if path == "" {
		return nil, &shared.BadRequest{Message: "No path"}
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path, nil)
	if err != nil {
		return nil, &shared.BadRequest{Message: fmt.Sprintf("invalid path: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Cache-Control", "no-store")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("upstream rejected request", "status", resp.StatusCode, "path", path)
		return nil, &shared.UpstreamError{Status: resp.StatusCode, Path: path}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", shared.ErrAPIRequest, err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: non-JSON response for %s", shared.ErrAPIRequest, path)
	}

	return json.RawMessage(body), nil
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a simplified artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyPlaylistItem is a playlist entry. Track is null for removed or local items.
type SpotifyPlaylistItem struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPlaylistItems is the playlist tracks page.
type SpotifyPlaylistItems struct {
	Items []SpotifyPlaylistItem `json:"items"`
}

type owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type trackTotal struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a playlist in the current user's library.
type SpotifySimplePlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Owner       owner          `json:"owner"`
	Tracks      trackTotal     `json:"tracks"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

// SpotifySearchResult is the search payload for type=track.
type SpotifySearchResult struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

func firstImage(images []SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// ToModel converts a [SpotifyTrack] to a [models.Track].
func (t SpotifyTrack) ToModel() models.Track {
	artists := make([]models.Artist, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, models.Artist{ID: a.ID, Name: a.Name})
	}
	return models.Track{
		ID:         t.ID,
		Name:       t.Name,
		URI:        t.URI,
		DurationMs: t.DurationMS,
		Artists:    artists,
		Album: models.Album{
			ID:       t.Album.ID,
			Name:     t.Album.Name,
			ImageURL: firstImage(t.Album.Images),
		},
	}
}

// ToModel converts a [SpotifySimplePlaylist] to a [models.Playlist].
func (p SpotifySimplePlaylist) ToModel() models.Playlist {
	ownerName := p.Owner.DisplayName
	if ownerName == "" {
		ownerName = p.Owner.ID
	}
	return models.Playlist{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Owner:       ownerName,
		TrackCount:  p.Tracks.Total,
		ImageURL:    firstImage(p.Images),
	}
}
