package connect

import (
	"context"
	"time"

	"github.com/desertthunder/tunedeck/internal/playback"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/zmb3/spotify/v2"
)

const (
	// seekThreshold is how far the reported position may stray from the extrapolated one
	// before it counts as a seek.
	seekThreshold = 2500 * time.Millisecond
	// presenceEvery is how many polls pass between device list checks while online.
	presenceEvery = 5
)

// snapshot is what the poller remembers about the last reported state.
type snapshot struct {
	Hash       uint64
	Playing    bool
	PositionMs int
	At         time.Time
}

// stateKey holds the fields whose change is always reported.
type stateKey struct {
	TrackID  string
	Playing  bool
	DeviceID string
}

func (d *Device) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	d.logger.Debug("poller started", "interval", d.interval)
	defer d.logger.Debug("poller stopped")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	if !d.poll(ctx, 0) {
		return
	}
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.nudge:
		}
		if !d.poll(ctx, n) {
			return
		}
	}
}

// poll runs one cycle: a presence check when due, then a player state read.
// It returns false once the credentials are rejected.
func (d *Device) poll(ctx context.Context, n int) bool {
	d.mu.Lock()
	online, deviceID := d.online, d.deviceID
	d.mu.Unlock()

	if !online || n%presenceEvery == 0 {
		if !d.checkPresence(ctx, deviceID, online) {
			return true
		}
	}

	state, err := d.client.PlayerState(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		if classify(err) == shared.AuthenticationError {
			_, ev := failure(err)
			d.emit(ev)
			return false
		}
		d.logger.Warn("failed to read player state", "err", err)
		return true
	}

	if state.Device.ID != "" && string(state.Device.ID) != deviceID {
		return true
	}

	if note, changed := d.observe(state); changed {
		d.emit(playback.Event{Kind: playback.EventStateChanged, DeviceID: deviceID, State: note})
	}
	return true
}

// checkPresence reports whether the device is listed and emits ready or not_ready on a change.
func (d *Device) checkPresence(ctx context.Context, deviceID string, wasOnline bool) bool {
	devices, err := d.client.PlayerDevices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("failed to list devices", "err", err)
		}
		return wasOnline
	}

	present := false
	for _, dev := range devices {
		if string(dev.ID) == deviceID {
			present = true
			break
		}
	}
	if present == wasOnline {
		return present
	}

	d.mu.Lock()
	d.online = present
	d.last = nil
	d.mu.Unlock()

	if present {
		d.logger.Info("device is back", "device_id", deviceID)
		d.emit(playback.Event{Kind: playback.EventReady, DeviceID: deviceID})
	} else {
		d.logger.Warn("device disappeared", "device_id", deviceID)
		d.emit(playback.Event{Kind: playback.EventNotReady, DeviceID: deviceID})
	}
	return present
}

// observe records state and reports whether it differs from what was last reported.
func (d *Device) observe(state *spotify.PlayerState) (*playback.Notification, bool) {
	key := stateKey{Playing: state.Playing, DeviceID: string(state.Device.ID)}
	if state.Item != nil {
		key.TrackID = string(state.Item.ID)
	}
	hash, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		d.logger.Warn("failed to hash player state", "err", err)
		return nil, false
	}

	now := d.now()
	position := int(state.Progress)
	next := &snapshot{Hash: hash, Playing: state.Playing, PositionMs: position, At: now}

	d.mu.Lock()
	prev := d.last
	d.last = next
	d.mu.Unlock()

	if prev != nil && prev.Hash == hash && !drifted(prev, position, now) {
		return nil, false
	}
	return notification(state), true
}

// drifted reports whether position is too far from where prev says playback should be.
func drifted(prev *snapshot, position int, now time.Time) bool {
	expected := prev.PositionMs
	if prev.Playing {
		expected += int(now.Sub(prev.At).Milliseconds())
	}
	delta := time.Duration(position-expected) * time.Millisecond
	return delta > seekThreshold || delta < -seekThreshold
}

func notification(state *spotify.PlayerState) *playback.Notification {
	n := &playback.Notification{
		Paused:     !state.Playing,
		PositionMs: int(state.Progress),
	}
	if state.Item != nil {
		track := convertTrack(state.Item)
		n.TrackWindow = &playback.TrackWindow{Current: track}
		n.DurationMs = track.DurationMs
	}
	return n
}
