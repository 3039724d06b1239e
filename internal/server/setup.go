package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/shared"
	"golang.org/x/oauth2"
)

const stateCookie = "tunedeck_setup_state"

var setupPage = template.Must(template.New("setup").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <style>
        body { font-family: monospace; background: #0a0a0a; color: #f0f0f0; padding: 40px; max-width: 700px; }
        h2.ok { color: #1db954; }
        h2.err { color: #e74c3c; }
        .token { background: #111; border: 1px solid #2a2a2a; border-radius: 8px; padding: 16px;
                 word-break: break-all; margin: 16px 0; color: #1db954; font-weight: bold; }
        p { color: #888; }
    </style>
</head>
<body>
{{- if .RefreshToken}}
    <h2 class="ok">Got your refresh token</h2>
    <p>Store this value as <code>SPOTIFY_REFRESH_TOKEN</code>, or as <code>refresh_token</code> under
    <code>[credentials.spotify]</code> in the config file, then restart the server.</p>
    <div class="token">{{.RefreshToken}}</div>
    <p>You only need to do this once.</p>
{{- else}}
    <h2 class="err">{{.Title}}</h2>
    {{- if .Raw}}
    <pre>{{.Raw}}</pre>
    {{- else}}
    <p>Go back and try again.</p>
    {{- end}}
{{- end}}
</body>
</html>
`))

type setupView struct {
	Title        string
	RefreshToken string
	Raw          string
}

// SetupResult contains the outcome of a setup callback.
type SetupResult struct {
	Token *oauth2.Token
	err   error
}

func (s *SetupResult) Error() error {
	return s.err
}

// SetupHandlerOpts configures a [SetupHandler].
type SetupHandlerOpts struct {
	Config *oauth2.Config
	// State is required on the callback when set. Otherwise the state cookie issued by the
	// authorize route is checked when the browser sends it.
	State string
	// SingleUse rejects every callback after the first.
	SingleUse bool
	Logger    *log.Logger
}

// SetupHandler runs the one-time authorization code flow that yields the refresh token.
//
// It serves the callback at /api/setup and a convenience redirect to the accounts service at
// /api/setup/authorize. The first result is also delivered on [SetupHandler.Result].
type SetupHandler struct {
	config    *oauth2.Config
	state     string
	singleUse bool
	logger    *log.Logger

	resultChan  chan SetupResult
	once        sync.Once
	callbackHit bool
	mu          sync.Mutex
}

// NewSetupHandler creates a new [SetupHandler].
func NewSetupHandler(opts SetupHandlerOpts) *SetupHandler {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &SetupHandler{
		config:     opts.Config,
		state:      opts.State,
		singleUse:  opts.SingleUse,
		logger:     shared.WithLogger(opts.Logger, "component", "setup"),
		resultChan: make(chan SetupResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *SetupHandler) Routes() []string {
	return []string{"/api/setup", "/api/setup/authorize"}
}

// ServeHTTP dispatches to the callback or the authorize redirect.
func (h *SetupHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/api/setup/authorize" {
		h.authorize(w, r)
		return
	}
	h.callback(w, r)
}

// AuthURL returns the accounts authorize URL for state.
func (h *SetupHandler) AuthURL(state string) string {
	return h.config.AuthCodeURL(state)
}

func (h *SetupHandler) authorize(w http.ResponseWriter, r *http.Request) {
	state := h.state
	if state == "" {
		var err error
		if state, err = shared.GenerateState(); err != nil {
			h.logger.Error("failed to generate state", "err", err)
			h.render(w, http.StatusInternalServerError, setupView{Title: "Could not start authorization"})
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/setup",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.AuthURL(state), http.StatusFound)
}

// expectedState returns the state the callback must carry, if any.
func (h *SetupHandler) expectedState(r *http.Request) string {
	if h.state != "" {
		return h.state
	}
	if c, err := r.Cookie(stateCookie); err == nil {
		return c.Value
	}
	return ""
}

func (h *SetupHandler) callback(w http.ResponseWriter, r *http.Request) {
	if h.singleUse {
		h.mu.Lock()
		if h.callbackHit {
			h.mu.Unlock()
			h.render(w, http.StatusBadRequest, setupView{Title: "Callback already processed"})
			return
		}
		h.callbackHit = true
		h.mu.Unlock()
	}

	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.Send(SetupResult{err: fmt.Errorf("%w: %s", shared.ErrAuthFailed, errParam)})
		h.render(w, http.StatusBadRequest, setupView{Title: "Error: " + errParam})
		return
	}

	if want := h.expectedState(r); want != "" && q.Get("state") != want {
		h.Send(SetupResult{err: fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)})
		h.render(w, http.StatusBadRequest, setupView{Title: "Invalid state parameter"})
		return
	}

	code := q.Get("code")
	if code == "" {
		h.Send(SetupResult{err: fmt.Errorf("%w: no code", shared.ErrMissingArgument)})
		h.render(w, http.StatusBadRequest, setupView{Title: "No code"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	token, err := h.config.Exchange(ctx, code)
	if err != nil {
		h.logger.Error("authorization code exchange failed", "err", err)
		h.Send(SetupResult{err: fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)})
		h.render(w, http.StatusBadGateway, setupView{Title: "Failed to get refresh token", Raw: exchangeBody(err)})
		return
	}
	if token.RefreshToken == "" {
		h.Send(SetupResult{err: fmt.Errorf("%w: response carried no refresh token", shared.ErrAuthFailed)})
		h.render(w, http.StatusBadGateway, setupView{
			Title: "Failed to get refresh token",
			Raw:   "The accounts service returned an access token without a refresh token.",
		})
		return
	}

	h.logger.Info("refresh token issued")
	h.Send(SetupResult{Token: token})
	h.render(w, http.StatusOK, setupView{Title: "Authorization Successful", RefreshToken: token.RefreshToken})
}

// exchangeBody returns the raw accounts response carried by err, or its message.
func exchangeBody(err error) string {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && len(re.Body) > 0 {
		return string(re.Body)
	}
	return err.Error()
}

func (h *SetupHandler) render(w http.ResponseWriter, status int, v setupView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := setupPage.Execute(w, v); err != nil {
		h.logger.Warn("failed to render setup page", "err", err)
	}
}

// Send sends the setup result through the channel (only once).
func (h *SetupHandler) Send(result SetupResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving setup completion.
//
// Channel will receive exactly one result and then be closed.
func (h *SetupHandler) Result() <-chan SetupResult {
	return h.resultChan
}
