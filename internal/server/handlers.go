package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/services"
	"github.com/desertthunder/tunedeck/internal/shared"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to write response", "err", err)
	}
}

// TokenHandler serves GET /api/token.
type TokenHandler struct {
	tokens services.TokenProvider
	logger *log.Logger
}

// NewTokenHandler creates a [TokenHandler] backed by tokens.
func NewTokenHandler(tokens services.TokenProvider, logger *log.Logger) *TokenHandler {
	return &TokenHandler{tokens: tokens, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *TokenHandler) Routes() []string { return []string{"/api/token"} }

// ServeHTTP responds with {token} or, on any failure, {error} and 500.
func (h *TokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, err := h.tokens.AccessToken(r.Context())
	if err != nil {
		h.logger.Error("failed to get access token", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ProxyHandler serves GET /api/spotify?path=...
type ProxyHandler struct {
	fetcher services.Fetcher
	logger  *log.Logger
}

// NewProxyHandler creates a [ProxyHandler] backed by fetcher.
func NewProxyHandler(fetcher services.Fetcher, logger *log.Logger) *ProxyHandler {
	return &ProxyHandler{fetcher: fetcher, logger: logger}
}

// Routes returns the HTTP routes this handler serves.
func (h *ProxyHandler) Routes() []string { return []string{"/api/spotify"} }

// ServeHTTP relays the upstream body with 200.
//
// The path parameter is used exactly as decoded by the query parser.
func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "No path"})
		return
	}

	body, err := h.fetcher.Fetch(r.Context(), path)
	if err != nil {
		status := proxyStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("proxy request failed", "path", path, "err", err)
		}
		writeJSON(w, status, errorBody{Error: err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write proxy response", "err", err)
	}
}

func proxyStatus(err error) int {
	var upstream *shared.UpstreamError
	var bad *shared.BadRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler serves GET /health.
type HealthHandler struct {
	Version string
}

// Routes returns the HTTP routes this handler serves.
func (h HealthHandler) Routes() []string { return []string{"/health"} }

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": h.Version})
}
