// Package server provides the HTTP service that holds the Spotify credentials on behalf of the player.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses a chi mux internally with method filtering.
//
// # Endpoints
//
//   - GET /api/token returns {token}, a short-lived access token from the token cache
//   - GET /api/spotify?path=... relays a read-only Web API GET and returns the body verbatim
//   - GET /api/setup is the one-time authorization code callback that displays the refresh token
//   - GET /api/setup/authorize redirects to the accounts service with the player's scopes
//   - GET /api/now-playing streams playback snapshots over a websocket when enabled
//   - GET /health reports liveness
//
// Failures on the /api routes are JSON bodies of the form {"error": "..."}. Nothing is cached.
//
// # Setup Handler
//
// [SetupHandler] implements the OAuth2 authorization code callback.
//
// It validates the state parameter when one is expected, exchanges the code, renders the refresh token
// as an HTML page, and sends the result through a channel so the CLI setup flow can pick it up.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
