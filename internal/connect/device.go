package connect

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/playback"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/zmb3/spotify/v2"
)

const DefaultPollInterval = time.Second

// DeviceOpts configures a [Device].
type DeviceOpts struct {
	// HTTPClient must attach bearer tokens, e.g. one built with oauth2.NewClient.
	HTTPClient *http.Client
	// BaseURL overrides the Web API root.
	BaseURL string
	// Name selects a device by name. Empty selects the active device.
	Name         string
	PollInterval time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

// Device is a Spotify Connect device controlled through the Web API.
type Device struct {
	client   *spotify.Client
	name     string
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu       sync.Mutex
	subs     map[int]func(playback.Event)
	nextSub  int
	deviceID string
	online   bool
	last     *snapshot

	nudge  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

var _ playback.Device = (*Device)(nil)

// NewDevice creates a [Device]. Nothing is contacted until Connect.
func NewDevice(opts DeviceOpts) *Device {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	var clientOpts []spotify.ClientOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(strings.TrimSuffix(opts.BaseURL, "/")+"/"))
	}

	return &Device{
		client:   spotify.New(opts.HTTPClient, clientOpts...),
		name:     opts.Name,
		interval: opts.PollInterval,
		logger:   shared.WithLogger(opts.Logger, "component", "connect"),
		now:      opts.Now,
		subs:     make(map[int]func(playback.Event)),
		nudge:    make(chan struct{}, 1),
	}
}

// Subscribe implements [playback.Device].
func (d *Device) Subscribe(fn func(playback.Event)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		delete(d.subs, id)
		d.mu.Unlock()
	}
}

func (d *Device) emit(ev playback.Event) {
	d.mu.Lock()
	handlers := make([]func(playback.Event), 0, len(d.subs))
	for _, fn := range d.subs {
		handlers = append(handlers, fn)
	}
	d.mu.Unlock()

	d.logger.Debug("device event", "kind", ev.Kind, "device_id", ev.DeviceID)
	for _, fn := range handlers {
		fn(ev)
	}
}

// Connect selects a device, announces it and starts polling.
//
// Failures are reported both as an error event and as a [*shared.PlaybackInitError].
func (d *Device) Connect(ctx context.Context) error {
	devices, err := d.client.PlayerDevices(ctx)
	if err != nil {
		return d.fail(err)
	}

	selected, ok := d.selectDevice(devices)
	if !ok {
		msg := "no Spotify Connect device available; open Spotify on a device first"
		if d.name != "" {
			msg = fmt.Sprintf("no Spotify Connect device named %q", d.name)
		}
		d.emit(playback.Event{Kind: playback.EventInitializationError, Message: msg})
		return fmt.Errorf("%w: %s", shared.ErrNoDevice, msg)
	}

	id := string(selected.ID)
	d.mu.Lock()
	d.deviceID = id
	d.online = true
	d.last = nil
	d.mu.Unlock()

	d.logger.Info("device selected", "name", selected.Name, "type", selected.Type, "device_id", id)
	d.emit(playback.Event{Kind: playback.EventReady, DeviceID: id})

	if err := d.client.TransferPlayback(ctx, selected.ID, false); err != nil {
		return d.fail(err)
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.mu.Lock()
	d.cancel = cancel
	d.done = make(chan struct{})
	done := d.done
	d.mu.Unlock()

	go d.run(pollCtx, done)
	return nil
}

func (d *Device) fail(err error) error {
	typed, ev := failure(err)
	d.emit(ev)
	return typed
}

// selectDevice prefers the configured name, then the active device, then the first usable one.
func (d *Device) selectDevice(devices []spotify.PlayerDevice) (spotify.PlayerDevice, bool) {
	if d.name != "" {
		for _, dev := range devices {
			if strings.EqualFold(dev.Name, d.name) {
				return dev, true
			}
		}
		return spotify.PlayerDevice{}, false
	}
	for _, dev := range devices {
		if dev.Active && !dev.Restricted {
			return dev, true
		}
	}
	for _, dev := range devices {
		if !dev.Restricted {
			return dev, true
		}
	}
	return spotify.PlayerDevice{}, false
}

// Disconnect stops polling. It is safe to call more than once.
func (d *Device) Disconnect() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// DeviceID returns the selected device, or "" before Connect.
func (d *Device) DeviceID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceID
}

func (d *Device) playOptions(deviceID string) *spotify.PlayOptions {
	if deviceID == "" {
		deviceID = d.DeviceID()
	}
	if deviceID == "" {
		return &spotify.PlayOptions{}
	}
	id := spotify.ID(deviceID)
	return &spotify.PlayOptions{DeviceID: &id}
}

func (d *Device) poke() {
	select {
	case d.nudge <- struct{}{}:
	default:
	}
}

// Play implements [playback.Device].
func (d *Device) Play(ctx context.Context, deviceID string, uris []string) error {
	opt := d.playOptions(deviceID)
	for _, uri := range uris {
		opt.URIs = append(opt.URIs, spotify.URI(uri))
	}
	if err := d.client.PlayOpt(ctx, opt); err != nil {
		return fmt.Errorf("%w: play: %v", shared.ErrAPIRequest, err)
	}
	d.poke()
	return nil
}

// TogglePlay pauses when the last polled state was playing and resumes otherwise.
func (d *Device) TogglePlay(ctx context.Context) error {
	d.mu.Lock()
	playing := d.last != nil && d.last.Playing
	d.mu.Unlock()

	var err error
	if playing {
		err = d.client.PauseOpt(ctx, d.playOptions(""))
	} else {
		err = d.client.PlayOpt(ctx, d.playOptions(""))
	}
	if err != nil {
		return fmt.Errorf("%w: toggle: %v", shared.ErrAPIRequest, err)
	}
	d.poke()
	return nil
}

// NextTrack implements [playback.Device].
func (d *Device) NextTrack(ctx context.Context) error {
	if err := d.client.NextOpt(ctx, d.playOptions("")); err != nil {
		return fmt.Errorf("%w: next: %v", shared.ErrAPIRequest, err)
	}
	d.poke()
	return nil
}

// PreviousTrack implements [playback.Device].
func (d *Device) PreviousTrack(ctx context.Context) error {
	if err := d.client.PreviousOpt(ctx, d.playOptions("")); err != nil {
		return fmt.Errorf("%w: previous: %v", shared.ErrAPIRequest, err)
	}
	d.poke()
	return nil
}

// Seek implements [playback.Device].
func (d *Device) Seek(ctx context.Context, positionMs int) error {
	if err := d.client.SeekOpt(ctx, max(0, positionMs), d.playOptions("")); err != nil {
		return fmt.Errorf("%w: seek: %v", shared.ErrAPIRequest, err)
	}
	d.poke()
	return nil
}

// SetVolume sends volume as a whole percentage.
func (d *Device) SetVolume(ctx context.Context, volume float64) error {
	percent := int(math.Round(max(0, min(1, volume)) * 100))
	if err := d.client.VolumeOpt(ctx, percent, d.playOptions("")); err != nil {
		return fmt.Errorf("%w: volume: %v", shared.ErrAPIRequest, err)
	}
	return nil
}

// convertTrack maps a Web API track to the domain model.
func convertTrack(t *spotify.FullTrack) models.Track {
	track := models.Track{
		ID:         string(t.ID),
		Name:       t.Name,
		URI:        string(t.URI),
		DurationMs: int(t.Duration),
		Album: models.Album{
			ID:   string(t.Album.ID),
			Name: t.Album.Name,
		},
	}
	if len(t.Album.Images) > 0 {
		track.Album.ImageURL = t.Album.Images[0].URL
	}
	for _, a := range t.Artists {
		track.Artists = append(track.Artists, models.Artist{ID: string(a.ID), Name: a.Name})
	}
	return track
}
