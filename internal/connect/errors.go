package connect

import (
	"errors"
	"net/http"
	"strings"

	"github.com/desertthunder/tunedeck/internal/playback"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/zmb3/spotify/v2"
)

// apiError extracts the Web API error carried by err.
func apiError(err error) (spotify.Error, bool) {
	var value spotify.Error
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *spotify.Error
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return spotify.Error{}, false
}

// classify maps a failed device call to the error kind the player reports.
func classify(err error) shared.PlaybackErrorKind {
	if errors.Is(err, shared.ErrAuthFailed) {
		return shared.AuthenticationError
	}
	if se, ok := apiError(err); ok {
		switch {
		case se.Status == http.StatusUnauthorized:
			return shared.AuthenticationError
		case se.Status == http.StatusForbidden && strings.Contains(strings.ToLower(se.Message), "premium"):
			return shared.AccountError
		}
	}
	return shared.InitializationError
}

// failure builds the typed error for err along with the event announcing it.
func failure(err error) (*shared.PlaybackInitError, playback.Event) {
	kind := classify(err)
	msg := err.Error()
	if se, ok := apiError(err); ok && se.Message != "" {
		msg = se.Message
	}

	ev := playback.Event{Message: msg}
	switch kind {
	case shared.AuthenticationError:
		ev.Kind = playback.EventAuthenticationError
	case shared.AccountError:
		ev.Kind = playback.EventAccountError
	default:
		ev.Kind = playback.EventInitializationError
	}
	return &shared.PlaybackInitError{Kind: kind, Message: msg}, ev
}
