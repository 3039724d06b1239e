package playback

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
)

// fakeDevice records device calls and lets tests emit events.
type fakeDevice struct {
	calls    []string
	lastURIs []string
	lastID   string
	seekMs   int
	volume   float64
	err      error
	handlers []func(Event)
}

func (d *fakeDevice) Subscribe(fn func(Event)) func() {
	d.handlers = append(d.handlers, fn)
	return func() {}
}

func (d *fakeDevice) emit(ev Event) {
	for _, h := range d.handlers {
		h(ev)
	}
}

func (d *fakeDevice) record(name string) error {
	d.calls = append(d.calls, name)
	return d.err
}

func (d *fakeDevice) Connect(ctx context.Context) error { return d.record("connect") }
func (d *fakeDevice) Disconnect()                       { d.record("disconnect") }
func (d *fakeDevice) Play(ctx context.Context, id string, uris []string) error {
	d.lastID, d.lastURIs = id, uris
	return d.record("play")
}
func (d *fakeDevice) TogglePlay(ctx context.Context) error    { return d.record("toggle") }
func (d *fakeDevice) NextTrack(ctx context.Context) error     { return d.record("next") }
func (d *fakeDevice) PreviousTrack(ctx context.Context) error { return d.record("previous") }
func (d *fakeDevice) Seek(ctx context.Context, ms int) error {
	d.seekMs = ms
	return d.record("seek")
}
func (d *fakeDevice) SetVolume(ctx context.Context, v float64) error {
	d.volume = v
	return d.record("volume")
}

func testTracks(n int) []models.Track {
	tracks := make([]models.Track, n)
	for i := range tracks {
		id := string(rune('a' + i))
		tracks[i] = models.Track{ID: id, Name: "Track " + id, URI: "spotify:track:" + id, DurationMs: 180000}
	}
	return tracks
}

func notification(track models.Track, paused bool, position int) *Notification {
	return &Notification{
		TrackWindow: &TrackWindow{Current: track},
		Paused:      paused,
		PositionMs:  position,
		DurationMs:  track.DurationMs,
	}
}

func newReadyController(t *testing.T) (*Controller, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	c := NewController(dev, WithLogger(shared.NewLogger(&bytes.Buffer{})))
	c.Connect()
	c.Handle(Event{Kind: EventReady, DeviceID: "dev-1"})
	if c.Status() != Ready {
		t.Fatalf("expected Ready, got %v", c.Status())
	}
	return c, dev
}

func run(t *testing.T, cmd Command) error {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command, got nil")
	}
	return cmd(context.Background())
}

func TestControllerLifecycle(t *testing.T) {
	t.Run("Starts Disconnected With Default Volume", func(t *testing.T) {
		c := NewController(&fakeDevice{})
		if c.Status() != Disconnected {
			t.Errorf("expected Disconnected, got %v", c.Status())
		}
		if c.Snapshot().Volume != DefaultVolume {
			t.Errorf("expected volume %v, got %v", DefaultVolume, c.Snapshot().Volume)
		}
	})

	t.Run("Connect Moves To Connecting Once", func(t *testing.T) {
		dev := &fakeDevice{}
		c := NewController(dev)

		if err := run(t, c.Connect()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Status() != Connecting {
			t.Errorf("expected Connecting, got %v", c.Status())
		}
		if c.Connect() != nil {
			t.Error("expected second Connect to be ignored")
		}
		if !reflect.DeepEqual(dev.calls, []string{"connect"}) {
			t.Errorf("expected one connect call, got %v", dev.calls)
		}
	})

	t.Run("Ready Then NotReady", func(t *testing.T) {
		c, _ := newReadyController(t)
		if c.Snapshot().DeviceID != "dev-1" {
			t.Errorf("expected device id dev-1, got %s", c.Snapshot().DeviceID)
		}

		c.Handle(Event{Kind: EventNotReady, DeviceID: "dev-1"})
		if c.Status() != Connecting {
			t.Errorf("expected Connecting, got %v", c.Status())
		}
		if c.Snapshot().DeviceID != "" {
			t.Errorf("expected device id cleared, got %s", c.Snapshot().DeviceID)
		}

		c.Handle(Event{Kind: EventReady, DeviceID: "dev-2"})
		if c.Status() != Ready || c.Snapshot().DeviceID != "dev-2" {
			t.Errorf("expected Ready on dev-2, got %v on %s", c.Status(), c.Snapshot().DeviceID)
		}
	})

	t.Run("Ready While Disconnected Is Ignored", func(t *testing.T) {
		c := NewController(&fakeDevice{})
		c.Handle(Event{Kind: EventReady, DeviceID: "dev-1"})
		if c.Status() != Disconnected {
			t.Errorf("expected Disconnected, got %v", c.Status())
		}
	})

	t.Run("Failure Messages", func(t *testing.T) {
		tc := []struct {
			name string
			ev   Event
			want string
		}{
			{name: "initialization error", ev: Event{Kind: EventInitializationError, Message: "unsupported"}, want: "unsupported"},
			{name: "authentication error", ev: Event{Kind: EventAuthenticationError, Message: "bad token"}, want: "Auth error: bad token"},
			{name: "account error", ev: Event{Kind: EventAccountError, Message: "ignored"}, want: "Spotify Premium required"},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				c := NewController(&fakeDevice{}, WithLogger(shared.NewLogger(&bytes.Buffer{})))
				c.Connect()
				c.Handle(tt.ev)

				snap := c.Snapshot()
				if snap.Status != Failed {
					t.Errorf("expected Failed, got %v", snap.Status)
				}
				if snap.Failure != tt.want {
					t.Errorf("expected failure %q, got %q", tt.want, snap.Failure)
				}
			})
		}
	})

	t.Run("Failed Is Terminal", func(t *testing.T) {
		c, dev := newReadyController(t)
		c.Handle(Event{Kind: EventAccountError})

		c.Handle(Event{Kind: EventReady, DeviceID: "dev-1"})
		c.Handle(Event{Kind: EventStateChanged, State: notification(testTracks(1)[0], false, 0)})

		if c.Status() != Failed {
			t.Errorf("expected Failed, got %v", c.Status())
		}
		if c.Snapshot().State.CurrentTrack != nil {
			t.Error("expected notifications to be ignored after failure")
		}
		if c.TogglePlay() != nil || c.Play(models.Track{}, testTracks(2), 0) != nil {
			t.Error("expected commands to be ignored after failure")
		}
		if len(dev.calls) != 0 {
			t.Errorf("expected no device calls, got %v", dev.calls)
		}
	})

	t.Run("Fail From Disconnected", func(t *testing.T) {
		c := NewController(&fakeDevice{}, WithLogger(shared.NewLogger(&bytes.Buffer{})))
		c.Fail("Could not get token: boom")

		if c.Status() != Failed || c.Snapshot().Failure != "Could not get token: boom" {
			t.Errorf("unexpected snapshot %+v", c.Snapshot())
		}
		if c.Connect() != nil {
			t.Error("expected Connect to be ignored after failure")
		}
	})
}

func TestControllerCommands(t *testing.T) {
	t.Run("Commands Outside Ready Are No-ops", func(t *testing.T) {
		dev := &fakeDevice{}
		c := NewController(dev)
		c.Connect()

		cmds := map[string]Command{
			"play":     c.Play(testTracks(1)[0], testTracks(3), 1),
			"toggle":   c.TogglePlay(),
			"next":     c.SkipNext(),
			"previous": c.SkipPrev(),
			"seek":     c.Seek(5000),
			"volume":   c.SetVolume(0.2),
		}
		for name, cmd := range cmds {
			if cmd != nil {
				t.Errorf("%s: expected nil command", name)
			}
		}

		snap := c.Snapshot()
		if snap.State.PositionMs != 0 || snap.Volume != DefaultVolume || len(snap.Queue) != 0 {
			t.Errorf("expected no local changes, got %+v", snap)
		}
	})

	t.Run("Play Sends Queue From Index", func(t *testing.T) {
		c, dev := newReadyController(t)
		queue := testTracks(4)

		if err := run(t, c.Play(queue[1], queue, 1)); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		want := []string{"spotify:track:b", "spotify:track:c", "spotify:track:d"}
		if !reflect.DeepEqual(dev.lastURIs, want) {
			t.Errorf("expected uris %v, got %v", want, dev.lastURIs)
		}
		if dev.lastID != "dev-1" {
			t.Errorf("expected device dev-1, got %s", dev.lastID)
		}

		snap := c.Snapshot()
		if len(snap.Queue) != 4 || snap.QueueIndex != 1 {
			t.Errorf("expected queue of 4 at index 1, got %d at %d", len(snap.Queue), snap.QueueIndex)
		}
	})

	t.Run("Play With Empty Queue Plays Track", func(t *testing.T) {
		c, dev := newReadyController(t)
		track := testTracks(1)[0]

		run(t, c.Play(track, nil, 3))
		if !reflect.DeepEqual(dev.lastURIs, []string{track.URI}) {
			t.Errorf("expected single uri, got %v", dev.lastURIs)
		}
	})

	t.Run("Play Index Out Of Range", func(t *testing.T) {
		c, _ := newReadyController(t)
		if c.Play(models.Track{}, testTracks(2), 5) != nil {
			t.Error("expected nil command for out of range index")
		}
	})

	t.Run("Transport Commands Do Not Change Local State", func(t *testing.T) {
		c, dev := newReadyController(t)
		c.Handle(Event{Kind: EventStateChanged, State: notification(testTracks(1)[0], false, 1000)})
		before := c.Snapshot()

		run(t, c.TogglePlay())
		run(t, c.SkipNext())
		run(t, c.SkipPrev())

		if !reflect.DeepEqual(before, c.Snapshot()) {
			t.Errorf("expected unchanged snapshot, got %+v", c.Snapshot())
		}
		if !reflect.DeepEqual(dev.calls, []string{"toggle", "next", "previous"}) {
			t.Errorf("unexpected device calls %v", dev.calls)
		}
	})

	t.Run("Seek Is Optimistic", func(t *testing.T) {
		c, dev := newReadyController(t)
		cmd := c.Seek(42000)

		if c.Snapshot().State.PositionMs != 42000 {
			t.Errorf("expected local position 42000 before the device call, got %d", c.Snapshot().State.PositionMs)
		}
		run(t, cmd)
		if dev.seekMs != 42000 {
			t.Errorf("expected device seek 42000, got %d", dev.seekMs)
		}
	})

	t.Run("SetVolume Is Optimistic And Clamped", func(t *testing.T) {
		c, dev := newReadyController(t)
		cmd := c.SetVolume(1.5)

		if c.Snapshot().Volume != 1 {
			t.Errorf("expected local volume 1, got %v", c.Snapshot().Volume)
		}
		run(t, cmd)
		if dev.volume != 1 {
			t.Errorf("expected device volume 1, got %v", dev.volume)
		}
	})

	t.Run("Device Errors Are Logged And Returned", func(t *testing.T) {
		var logs bytes.Buffer
		dev := &fakeDevice{}
		c := NewController(dev, WithLogger(shared.NewLogger(&logs)))
		c.Connect()
		c.Handle(Event{Kind: EventReady, DeviceID: "dev-1"})

		dev.err = errors.New("device unreachable")
		err := run(t, c.SkipNext())

		if !errors.Is(err, dev.err) {
			t.Errorf("expected wrapped device error, got %v", err)
		}
		if !strings.Contains(logs.String(), "device command failed") {
			t.Errorf("expected failure to be logged, got %q", logs.String())
		}
		if c.Status() != Ready {
			t.Errorf("expected to stay Ready, got %v", c.Status())
		}
	})
}

func TestControllerReconcile(t *testing.T) {
	t.Run("Notification Replaces State", func(t *testing.T) {
		c, _ := newReadyController(t)
		c.Seek(99000)
		track := testTracks(1)[0]

		c.Handle(Event{Kind: EventStateChanged, State: notification(track, false, 1234)})

		state := c.Snapshot().State
		if state.CurrentTrack == nil || state.CurrentTrack.ID != track.ID {
			t.Fatalf("expected current track %s, got %+v", track.ID, state.CurrentTrack)
		}
		if !state.IsPlaying || state.PositionMs != 1234 || state.DurationMs != 180000 {
			t.Errorf("unexpected state %+v", state)
		}
	})

	t.Run("Notification Without Track Window Is Ignored", func(t *testing.T) {
		c, _ := newReadyController(t)
		c.Handle(Event{Kind: EventStateChanged, State: notification(testTracks(1)[0], false, 5000)})
		gen, _ := c.Ticker()
		before := c.Snapshot()

		c.Handle(Event{Kind: EventStateChanged, State: &Notification{Paused: true, PositionMs: 0}})
		c.Handle(Event{Kind: EventStateChanged})

		if !reflect.DeepEqual(before, c.Snapshot()) {
			t.Errorf("expected unchanged snapshot, got %+v", c.Snapshot())
		}
		if g, _ := c.Ticker(); g != gen {
			t.Error("expected ignored notification to leave the ticker running")
		}
	})

	t.Run("Snapshot Is A Copy", func(t *testing.T) {
		c, _ := newReadyController(t)
		c.Handle(Event{Kind: EventStateChanged, State: notification(testTracks(1)[0], false, 0)})

		snap := c.Snapshot()
		snap.State.CurrentTrack.Name = "mutated"
		if c.Snapshot().State.CurrentTrack.Name == "mutated" {
			t.Error("expected snapshot mutation not to leak into the controller")
		}
	})
}

func TestControllerTicker(t *testing.T) {
	t.Run("Advances While Playing And Caps At Duration", func(t *testing.T) {
		c, _ := newReadyController(t)
		track := models.Track{ID: "x", URI: "spotify:track:x", DurationMs: 2500}
		c.Handle(Event{Kind: EventStateChanged, State: notification(track, false, 0)})

		gen, running := c.Ticker()
		if !running {
			t.Fatal("expected ticker to run while playing")
		}

		for range 5 {
			c.Tick(gen)
		}
		if got := c.Snapshot().State.PositionMs; got != 2500 {
			t.Errorf("expected position capped at 2500, got %d", got)
		}
	})

	t.Run("Notification Resets Ticker", func(t *testing.T) {
		c, _ := newReadyController(t)
		track := testTracks(1)[0]
		c.Handle(Event{Kind: EventStateChanged, State: notification(track, false, 0)})
		stale, _ := c.Ticker()

		c.Handle(Event{Kind: EventStateChanged, State: notification(track, false, 60000)})
		if c.Tick(stale) {
			t.Error("expected stale tick to stop")
		}
		if got := c.Snapshot().State.PositionMs; got != 60000 {
			t.Errorf("expected stale tick to leave position at 60000, got %d", got)
		}

		current, _ := c.Ticker()
		if !c.Tick(current) || c.Snapshot().State.PositionMs != 61000 {
			t.Errorf("expected current tick to advance to 61000, got %d", c.Snapshot().State.PositionMs)
		}
	})

	t.Run("Paused Does Not Tick", func(t *testing.T) {
		c, _ := newReadyController(t)
		c.Handle(Event{Kind: EventStateChanged, State: notification(testTracks(1)[0], true, 3000)})

		gen, running := c.Ticker()
		if running {
			t.Error("expected ticker stopped while paused")
		}
		if c.Tick(gen) || c.Snapshot().State.PositionMs != 3000 {
			t.Errorf("expected paused position to stay 3000, got %d", c.Snapshot().State.PositionMs)
		}
	})
}
