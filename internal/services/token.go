package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// expiryMargin is subtracted from expires_in so a cached token is never handed out in its final minute.
const expiryMargin = 60 * time.Second

// AccessToken is a bearer token and the instant it stops being served from cache.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// tokenResponse is the accounts service token endpoint payload.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenCacheOpts configures a [TokenCache].
type TokenCacheOpts struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	TokenURL     string
	HTTPClient   *http.Client
	Now          func() time.Time
	Logger       *log.Logger
}

// TokenCache exchanges the long-lived refresh token for access tokens and caches the result in memory.
//
// Concurrent misses share a single refresh request.
type TokenCache struct {
	clientID     string
	clientSecret string
	refreshToken string
	tokenURL     string
	client       *http.Client
	now          func() time.Time
	logger       *log.Logger

	mu     sync.Mutex
	cached *AccessToken
	group  singleflight.Group
}

// NewTokenCache creates a [TokenCache], defaulting the token URL, HTTP client, clock and logger.
func NewTokenCache(opts TokenCacheOpts) *TokenCache {
	if opts.TokenURL == "" {
		opts.TokenURL = AccountsTokenURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &TokenCache{
		clientID:     opts.ClientID,
		clientSecret: opts.ClientSecret,
		refreshToken: opts.RefreshToken,
		tokenURL:     opts.TokenURL,
		client:       opts.HTTPClient,
		now:          opts.Now,
		logger:       shared.WithLogger(opts.Logger, "component", "token"),
	}
}

// AccessToken returns the cached token while it is fresh and refreshes it otherwise.
func (c *TokenCache) AccessToken(ctx context.Context) (string, error) {
	tok, err := c.Current(ctx)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// Current is [TokenCache.AccessToken] returning the expiry alongside the value.
func (c *TokenCache) Current(ctx context.Context) (AccessToken, error) {
	if tok, ok := c.fresh(); ok {
		return tok, nil
	}

	v, err, joined := c.group.Do("refresh", func() (any, error) {
		if tok, ok := c.fresh(); ok {
			return tok, nil
		}
		// The refresh outlives any single caller that gives up waiting.
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return AccessToken{}, err
	}
	if joined {
		c.logger.Debug("joined in-flight refresh")
	}
	return v.(AccessToken), nil
}

// Token implements [oauth2.TokenSource] so Web API clients can share the cache.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	tok, err := c.Current(context.Background())
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Value, TokenType: "Bearer", Expiry: tok.ExpiresAt}, nil
}

func (c *TokenCache) fresh() (AccessToken, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached == nil || !c.now().Before(c.cached.ExpiresAt) {
		return AccessToken{}, false
	}
	return *c.cached, true
}

// refresh performs the refresh_token grant. The cache is only replaced on success.
func (c *TokenCache) refresh(ctx context.Context) (AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", c.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, fmt.Errorf("%w: failed to read response: %v", shared.ErrRefreshFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("token refresh rejected", "status", resp.StatusCode)
		return AccessToken{}, &shared.AuthError{Body: string(body)}
	}

	var payload tokenResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.AccessToken == "" {
		c.logger.Error("token refresh rejected", "status", resp.StatusCode)
		return AccessToken{}, &shared.AuthError{Body: string(body)}
	}

	if payload.RefreshToken != "" && payload.RefreshToken != c.refreshToken {
		c.logger.Warn("accounts service rotated the refresh token; update SPOTIFY_REFRESH_TOKEN")
	}

	tok := AccessToken{
		Value:     payload.AccessToken,
		ExpiresAt: c.now().Add(time.Duration(payload.ExpiresIn)*time.Second - expiryMargin),
	}

	c.mu.Lock()
	c.cached = &tok
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expires_at", tok.ExpiresAt)
	return tok, nil
}
