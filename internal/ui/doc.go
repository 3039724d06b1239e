// Package ui implements the terminal player using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [PlaylistsView] : browse the library's playlists
//  2. [TracksView] : tracks of the selected playlist, enter plays from the cursor
//  3. [SearchView] : debounced track search
//
// A now-playing bar under every view renders the [playback.Controller] snapshot.
//
// The controller is only touched inside [Model.Update]. Device events arrive on another goroutine,
// so they are relayed through a channel and re-enter the loop as messages. Device commands returned
// by the controller run as [tea.Cmd]s and report back with their error.
//
// The position ticker is a chain of one second [tea.Tick]s tagged with the controller's ticker
// generation; a tick from an older generation ends its chain.
package ui
