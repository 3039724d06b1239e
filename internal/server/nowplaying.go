package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tunedeck/internal/connect"
	"github.com/desertthunder/tunedeck/internal/models"
	"github.com/desertthunder/tunedeck/internal/shared"
	"github.com/gorilla/websocket"
	"github.com/mitchellh/hashstructure/v2"
	"github.com/zmb3/spotify/v2"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub fans now-playing snapshots out to websocket clients.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	last    []byte
	logger  *log.Logger
}

type wsClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

// NewHub creates an empty [Hub].
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		logger:  shared.WithLogger(logger, "component", "hub"),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *Hub) Routes() []string { return []string{"/api/now-playing"} }

// ServeHTTP upgrades the request and streams snapshots until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err, "remote_addr", r.RemoteAddr)
		return
	}

	c := &wsClient{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	h.register(c)

	go c.writePump()
	c.readPump()
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.logger.Debug("client registered", "remote_addr", c.conn.RemoteAddr(), "clients", len(h.clients))
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.logger.Debug("client unregistered", "remote_addr", c.conn.RemoteAddr(), "clients", len(h.clients))
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends np to every client and remembers it for clients that connect later.
//
// Clients whose buffer is full skip the update.
func (h *Hub) Broadcast(np models.NowPlaying) error {
	payload, err := json.Marshal(np)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.last = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("client too slow, dropping update", "remote_addr", c.conn.RemoteAddr())
		}
	}
	return nil
}

// Forget drops the remembered snapshot.
func (h *Hub) Forget() {
	h.mu.Lock()
	h.last = nil
	h.mu.Unlock()
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.close()
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c)
		if err := c.conn.Close(); err != nil {
			c.hub.logger.Debug("error while closing websocket", "err", err)
		}
	})
}

// readPump detects dead connections through read deadlines. Client messages are discarded.
func (c *wsClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("client write error", "err", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PlayerStateReader reads the current player state.
type PlayerStateReader interface {
	PlayerState(ctx context.Context, opts ...spotify.RequestOption) (*spotify.PlayerState, error)
}

// playingKey holds the fields whose change triggers a broadcast.
type playingKey struct {
	TrackID   string
	IsPlaying bool
	DeviceID  string
}

// Poller reads the player state periodically and broadcasts changes through a [Hub].
type Poller struct {
	reader   PlayerStateReader
	hub      *Hub
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	lastHash uint64
	seen     bool
}

// NewPoller creates a [Poller]. It does nothing until Run.
func NewPoller(reader PlayerStateReader, hub *Hub, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{
		reader:   reader,
		hub:      hub,
		interval: interval,
		logger:   shared.WithLogger(logger, "component", "poller"),
		now:      time.Now,
	}
}

// Run polls until ctx is done. It must be run in a separate goroutine.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started", "interval", p.interval)
	defer p.logger.Info("poller stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Update(ctx)
		}
	}
}

// Update reads the state once and broadcasts it when it changed. Nothing is read without clients.
func (p *Poller) Update(ctx context.Context) {
	if p.hub.Len() == 0 {
		if p.seen {
			p.seen = false
			p.hub.Forget()
		}
		return
	}

	state, err := p.reader.PlayerState(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("failed to read player state", "err", err)
		}
		return
	}

	np := connect.NowPlaying(state, p.now())
	key := playingKey{IsPlaying: np.IsPlaying, DeviceID: np.DeviceID}
	if np.Track != nil {
		key.TrackID = np.Track.ID
	}
	hash, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		p.logger.Warn("failed to hash player state", "err", err)
		return
	}
	if p.seen && hash == p.lastHash {
		return
	}
	p.seen, p.lastHash = true, hash

	trackName := "Nothing"
	if np.Track != nil {
		trackName = np.Track.Name
	}
	p.logger.Info("state changed, broadcasting update", "is_playing", np.IsPlaying, "track", trackName)
	if err := p.hub.Broadcast(np); err != nil {
		p.logger.Error("failed to broadcast", "err", err)
	}
}
