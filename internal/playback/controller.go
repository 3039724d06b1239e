package playback

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
)

const (
	DefaultVolume = 0.7
	tickMs        = 1000

	premiumRequired = "Spotify Premium required"
)

// Command performs a device call off the event loop.
type Command func(ctx context.Context) error

// Snapshot is a read-only copy of the controller state for rendering.
type Snapshot struct {
	Status     Status
	DeviceID   string
	Failure    string
	State      PlaybackState
	Volume     float64
	Queue      []models.Track
	QueueIndex int
}

// Controller is the playback state machine. See the package documentation for its threading rules.
type Controller struct {
	device Device
	logger *log.Logger

	status   Status
	deviceID string
	failure  string

	state      PlaybackState
	volume     float64
	queue      []models.Track
	queueIndex int

	// generation identifies the running ticker. Ticks from older generations are dropped.
	generation uint64
}

// Option configures a [Controller].
type Option func(*Controller)

// WithLogger sets the logger used for device command failures.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithVolume sets the initial local volume.
func WithVolume(v float64) Option {
	return func(c *Controller) { c.volume = clampVolume(v) }
}

// NewController creates a Disconnected controller for device.
func NewController(device Device, opts ...Option) *Controller {
	c := &Controller{
		device: device,
		volume: DefaultVolume,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = shared.NewLogger(nil)
	}
	c.logger = shared.WithLogger(c.logger, "component", "playback")
	return c
}

// Status returns the readiness state.
func (c *Controller) Status() Status { return c.status }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Status:     c.status,
		DeviceID:   c.deviceID,
		Failure:    c.failure,
		State:      c.state,
		Volume:     c.volume,
		Queue:      append([]models.Track(nil), c.queue...),
		QueueIndex: c.queueIndex,
	}
	if c.state.CurrentTrack != nil {
		track := *c.state.CurrentTrack
		s.State.CurrentTrack = &track
	}
	return s
}

// Connect moves Disconnected to Connecting once a token has been obtained and returns the device
// connect call. It returns nil in any other state.
func (c *Controller) Connect() Command {
	if c.status != Disconnected {
		return nil
	}
	c.status = Connecting
	return c.command("connect", c.device.Connect)
}

// Fail moves the controller to Failed with message. Failed is terminal.
func (c *Controller) Fail(message string) {
	if c.status == Failed {
		return
	}
	c.status = Failed
	c.failure = message
	c.deviceID = ""
	c.generation++
	c.logger.Error("player failed", "reason", message)
}

// Handle applies a device event.
func (c *Controller) Handle(ev Event) {
	switch ev.Kind {
	case EventReady:
		if c.status == Connecting || c.status == Ready {
			c.status = Ready
			c.deviceID = ev.DeviceID
			c.logger.Info("device ready", "device_id", ev.DeviceID)
		}
	case EventNotReady:
		if c.status == Ready {
			c.status = Connecting
			c.deviceID = ""
			c.logger.Warn("device went offline", "device_id", ev.DeviceID)
		}
	case EventStateChanged:
		c.reconcile(ev.State)
	case EventInitializationError:
		c.failFromEvent(ev.Message)
	case EventAuthenticationError:
		c.failFromEvent("Auth error: " + ev.Message)
	case EventAccountError:
		c.failFromEvent(premiumRequired)
	}
}

func (c *Controller) failFromEvent(message string) {
	if c.status == Connecting || c.status == Ready {
		c.Fail(message)
	}
}

func (c *Controller) reconcile(n *Notification) {
	if c.status != Connecting && c.status != Ready {
		return
	}
	if n == nil || n.TrackWindow == nil {
		return
	}
	c.state = Reconcile(c.state, n)
	c.generation++
}

// Ticker returns the current ticker generation and whether the ticker should be running.
func (c *Controller) Ticker() (generation uint64, running bool) {
	return c.generation, c.state.IsPlaying && c.status != Failed
}

// Tick advances the position by one second, capped at the duration. It reports whether the ticker
// of generation should keep running; ticks from a stale generation change nothing.
func (c *Controller) Tick(generation uint64) bool {
	if generation != c.generation || !c.state.IsPlaying || c.status == Failed {
		return false
	}
	c.state.PositionMs = min(c.state.PositionMs+tickMs, c.state.DurationMs)
	return true
}

// Play starts playback of queue from index on the device. track is used as a single-item queue when
// queue is empty.
func (c *Controller) Play(track models.Track, queue []models.Track, index int) Command {
	if c.status != Ready {
		return nil
	}
	if len(queue) == 0 {
		queue, index = []models.Track{track}, 0
	}
	if index < 0 || index >= len(queue) {
		c.logger.Warn("play index out of range", "index", index, "queue", len(queue))
		return nil
	}

	c.queue = append([]models.Track(nil), queue...)
	c.queueIndex = index

	deviceID := c.deviceID
	uris := models.URIs(queue[index:])
	return c.command("play", func(ctx context.Context) error {
		return c.device.Play(ctx, deviceID, uris)
	})
}

// TogglePlay asks the device to pause or resume. Local state waits for the notification.
func (c *Controller) TogglePlay() Command {
	if c.status != Ready {
		return nil
	}
	return c.command("toggle", c.device.TogglePlay)
}

// SkipNext asks the device to skip forward.
func (c *Controller) SkipNext() Command {
	if c.status != Ready {
		return nil
	}
	return c.command("next", c.device.NextTrack)
}

// SkipPrev asks the device to skip back.
func (c *Controller) SkipPrev() Command {
	if c.status != Ready {
		return nil
	}
	return c.command("previous", c.device.PreviousTrack)
}

// Seek sets the local position optimistically and asks the device to seek.
func (c *Controller) Seek(positionMs int) Command {
	if c.status != Ready {
		return nil
	}
	c.state.PositionMs = positionMs
	return c.command("seek", func(ctx context.Context) error {
		return c.device.Seek(ctx, positionMs)
	})
}

// SetVolume sets the local volume optimistically and asks the device to change it.
func (c *Controller) SetVolume(volume float64) Command {
	if c.status != Ready {
		return nil
	}
	volume = clampVolume(volume)
	c.volume = volume
	return c.command("volume", func(ctx context.Context) error {
		return c.device.SetVolume(ctx, volume)
	})
}

// command wraps fn so failures are logged with the command name and returned to the caller.
func (c *Controller) command(name string, fn Command) Command {
	logger := c.logger
	return func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			logger.Warn("device command failed", "command", name, "err", err)
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}
}

func clampVolume(v float64) float64 {
	return max(0, min(1, v))
}
