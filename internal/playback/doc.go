// Package playback implements the player's local playback state machine.
//
// A [Controller] tracks device readiness (Disconnected → Connecting → Ready, or Failed), the current
// [PlaybackState], the play queue and the local volume. It is driven from a single event loop and is
// not safe for concurrent use: the TUI calls it only from its update function.
//
// Operations apply their local effect immediately and return a [Command] that performs the device
// call off the loop. A nil Command means the operation was ignored, which is always the case outside
// Ready.
//
// Devices report changes as [Event] values through [Device.Subscribe]. State notifications are
// authoritative: [Reconcile] replaces every field of the local state with the notification's.
// Between notifications a one-second ticker advances the position locally; it restarts whenever a
// notification arrives, so stale ticks are discarded by generation.
package playback
