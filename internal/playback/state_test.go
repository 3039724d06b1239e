package playback

import (
	"testing"

	"github.com/desertthunder/tunedeck/internal/models"
)

func TestReconcile(t *testing.T) {
	prevTrack := models.Track{ID: "old", DurationMs: 1000}
	prev := PlaybackState{CurrentTrack: &prevTrack, IsPlaying: true, PositionMs: 500, DurationMs: 1000}

	tc := []struct {
		name string
		n    *Notification
		want PlaybackState
	}{
		{name: "nil notification", n: nil, want: prev},
		{name: "no track window", n: &Notification{Paused: true, PositionMs: 0}, want: prev},
		{
			name: "full replacement",
			n: &Notification{
				TrackWindow: &TrackWindow{Current: models.Track{ID: "new", DurationMs: 200000}},
				Paused:      true,
				PositionMs:  7000,
				DurationMs:  200000,
			},
			want: PlaybackState{IsPlaying: false, PositionMs: 7000, DurationMs: 200000},
		},
		{
			name: "duration falls back to track metadata",
			n: &Notification{
				TrackWindow: &TrackWindow{Current: models.Track{ID: "new", DurationMs: 90000}},
				PositionMs:  10,
			},
			want: PlaybackState{IsPlaying: true, PositionMs: 10, DurationMs: 90000},
		},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(prev, tt.n)

			if got.IsPlaying != tt.want.IsPlaying || got.PositionMs != tt.want.PositionMs || got.DurationMs != tt.want.DurationMs {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
			if tt.n == nil || tt.n.TrackWindow == nil {
				if got.CurrentTrack != prev.CurrentTrack {
					t.Error("expected current track to be untouched")
				}
				return
			}
			if got.CurrentTrack == nil || got.CurrentTrack.ID != "new" {
				t.Errorf("expected current track new, got %+v", got.CurrentTrack)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	if Ready.String() != "ready" || Failed.String() != "failed" || Status(99).String() != "disconnected" {
		t.Error("unexpected Status strings")
	}
	if EventAccountError.String() != "account_error" || EventKind(99).String() != "unknown" {
		t.Error("unexpected EventKind strings")
	}
}
