// Package models defines the domain entities shared by the server, the player and the history store.
//
//   - [Track], [Artist], [Album] : track metadata as rendered by the player
//   - [Playlist] : library entries shown in the playlists view
//   - [NowPlaying] : a device playback snapshot, streamed by the server's now-playing feed
//   - [Play] : a persisted play history entry
package models
