package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed     = fmt.Errorf("authentication failed")
	ErrRefreshFailed  = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
	ErrTimeout        = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limit exceeded")

	// Playback errors
	ErrPlaybackInit    = fmt.Errorf("playback initialization failed")
	ErrNoDevice        = fmt.Errorf("no playback device available")
	ErrNotReady        = fmt.Errorf("player not ready")
	ErrPremiumRequired = fmt.Errorf("premium account required")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// AuthError reports a token exchange the accounts service did not honor.
//
// Body holds the raw response so operators can see what was rejected.
type AuthError struct {
	Body string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%v: %s", ErrAuthFailed, e.Body)
}

func (e *AuthError) Unwrap() error { return ErrAuthFailed }

// UpstreamError is a non-2xx response from the Web API.
type UpstreamError struct {
	Status int
	Path   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Spotify API error: %d %s", e.Status, e.Path)
}

func (e *UpstreamError) Unwrap() error { return ErrAPIRequest }

// BadRequest is a malformed inbound request.
type BadRequest struct {
	Message string
}

func (e *BadRequest) Error() string { return e.Message }

func (e *BadRequest) Unwrap() error { return ErrInvalidInput }

// PlaybackErrorKind enumerates the device failure events.
type PlaybackErrorKind int

const (
	InitializationError PlaybackErrorKind = iota
	AuthenticationError
	AccountError
)

func (k PlaybackErrorKind) String() string {
	switch k {
	case AuthenticationError:
		return "authentication_error"
	case AccountError:
		return "account_error"
	default:
		return "initialization_error"
	}
}

// PlaybackInitError is a device failure that moves the player into its failed state.
type PlaybackInitError struct {
	Kind    PlaybackErrorKind
	Message string
}

func (e *PlaybackInitError) Error() string {
	return fmt.Sprintf("%v (%v): %s", ErrPlaybackInit, e.Kind, e.Message)
}

func (e *PlaybackInitError) Unwrap() error { return ErrPlaybackInit }
