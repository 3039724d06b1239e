package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/desertthunder/tunedeck/internal/formatter"
	"github.com/desertthunder/tunedeck/internal/playback"
)

// renderNowPlaying draws the bar under every view from a controller snapshot.
func (m *Model) renderNowPlaying(snap playback.Snapshot) string {
	var lines []string

	switch snap.Status {
	case playback.Failed:
		return styles.banner.Render("Error: " + snap.Failure)
	case playback.Disconnected:
		lines = append(lines, m.spinner.View()+" Getting token...")
	case playback.Connecting:
		lines = append(lines, m.spinner.View()+" Connecting to device...")
	}

	state := snap.State
	if state.CurrentTrack == nil {
		if snap.Status == playback.Ready {
			lines = append(lines, styles.muted.Render("Nothing playing. Pick a track and press enter."))
		}
		lines = append(lines, volumeLabel(snap.Volume))
		return styles.bar.Render(strings.Join(lines, "\n"))
	}

	icon := "⏸"
	if state.IsPlaying {
		icon = "▶"
	}
	track := state.CurrentTrack
	lines = append(lines, fmt.Sprintf("%s %s • %s", icon, styles.ok.Render(track.Name), track.ArtistNames()))

	percent := 0.0
	if state.DurationMs > 0 {
		percent = float64(state.PositionMs) / float64(state.DurationMs)
	}
	lines = append(lines, fmt.Sprintf("%s %s %s   %s",
		formatter.FormatDuration(state.PositionMs),
		m.progress.ViewAs(percent),
		formatter.FormatDuration(state.DurationMs),
		volumeLabel(snap.Volume),
	))

	return styles.bar.Render(strings.Join(lines, "\n"))
}

func volumeLabel(v float64) string {
	return styles.muted.Render(fmt.Sprintf("vol %d%%", int(math.Round(v*100))))
}
