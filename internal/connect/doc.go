// Package connect drives a Spotify Connect device through the Web API player endpoints.
//
// [Device] implements [playback.Device]. Connecting selects a device, announces it as ready
// and transfers playback to it paused. From then on a poller reads the player state and turns
// changes into state_changed events: a different track, a pause or resume, a device switch, or a
// position that jumped away from where playback should be.
package connect
