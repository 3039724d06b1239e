// Client for the tunedeck server's internal endpoints
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/tunedeck/internal/shared"
	"golang.org/x/oauth2"
)

const DefaultServerURL = "http://127.0.0.1:3000"

// APIService talks to a running tunedeck server: the token endpoint and the Web API proxy.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service instance for the tunedeck server at baseURL.
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
	JSONData   any
}

// OK reports whether the status is 2xx.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ErrorMessage returns the {error} field of a JSON failure body, or the raw body.
func (r *APIResponse) ErrorMessage() string {
	if data, ok := r.JSONData.(map[string]any); ok {
		if msg, ok := data["error"].(string); ok {
			return msg
		}
	}
	return strings.TrimSpace(string(r.Body))
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	apiResp := &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
	}

	var jsonData any
	if err := json.Unmarshal(body, &jsonData); err == nil {
		apiResp.IsJSON = true
		apiResp.JSONData = jsonData
	}

	return apiResp, nil
}

// AccessToken fetches a fresh access token from the server's token endpoint.
func (a *APIService) AccessToken(ctx context.Context) (string, error) {
	resp, err := a.Get(ctx, "/api/token")
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("%w: %s", shared.ErrAuthFailed, resp.ErrorMessage())
	}

	var payload struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Token == "" {
		return "", fmt.Errorf("%w: malformed token response", shared.ErrAuthFailed)
	}
	return payload.Token, nil
}

// Fetch performs a Web API GET through the server's proxy endpoint.
func (a *APIService) Fetch(ctx context.Context, path string) (json.RawMessage, error) {
	if path == "" {
		return nil, &shared.BadRequest{Message: "No path"}
	}

	resp, err := a.Get(ctx, "/api/spotify?path="+url.QueryEscape(path))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.OK():
		if !resp.IsJSON {
			return nil, fmt.Errorf("%w: non-JSON proxy response", shared.ErrAPIRequest)
		}
		return json.RawMessage(resp.Body), nil
	case resp.StatusCode == http.StatusBadRequest:
		return nil, &shared.BadRequest{Message: resp.ErrorMessage()}
	default:
		return nil, fmt.Errorf("%w: %d %s", shared.ErrAPIRequest, resp.StatusCode, resp.ErrorMessage())
	}
}

// tokenLifetime is how long a token from the server is reused.
// The server never hands out a token with less than a minute left.
const tokenLifetime = time.Minute

// RemoteTokenSource adapts the server's token endpoint to [oauth2.TokenSource].
type RemoteTokenSource struct {
	ctx context.Context
	api *APIService
	now func() time.Time
}

// NewRemoteTokenSource returns a caching [oauth2.TokenSource] backed by api.
func NewRemoteTokenSource(ctx context.Context, api *APIService) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &RemoteTokenSource{ctx: ctx, api: api, now: time.Now})
}

// Token implements [oauth2.TokenSource].
func (s *RemoteTokenSource) Token() (*oauth2.Token, error) {
	value, err := s.api.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: value, TokenType: "Bearer", Expiry: s.now().Add(tokenLifetime)}, nil
}
