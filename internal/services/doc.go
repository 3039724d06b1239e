// Package services holds the HTTP clients tunedeck uses on both sides of the wire.
//
// # Server side
//
// [TokenCache] exchanges the long-lived refresh token for access tokens at the accounts service and keeps
// the current one in memory until a minute before it expires. Concurrent misses share a single refresh.
// It also implements [oauth2.TokenSource] so zmb3/spotify clients can reuse it.
//
// [Proxy] forwards read-only GETs to the Web API with that token. Non-2xx responses become
// [shared.UpstreamError].
//
// # Client side
//
// [APIService] talks to a running tunedeck server: /api/token and /api/spotify. [NewRemoteTokenSource]
// adapts the token endpoint for oauth2 clients, which is how the playback device adapter authenticates.
//
// # Library
//
// [Library] turns proxy responses into [models.Playlist] and [models.Track] values for the player views.
// It works over any [Fetcher], so the CLI and the TUI use the same code path.
package services
