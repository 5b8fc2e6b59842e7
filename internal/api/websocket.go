package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/fog-access-core/internal/events"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/config"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
)

// Message types on the live event feed.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// feedBufferSize is how many events a monitor may fall behind by
	// before new ones are dropped for it.
	feedBufferSize = 256

	defaultWSMaxMessageSize = 8192
	defaultWSPingInterval   = 30 * time.Second
	defaultWSPongTimeout    = 10 * time.Second
)

// feedChannels are the event channels a monitor may subscribe to.
var feedChannels = []string{
	events.ChannelAccessDecision,
	events.ChannelGrantCreated,
	events.ChannelDeviceRegistered,
	events.ChannelTelemetry,
	events.ChannelSyncCompleted,
}

// defaultChannels are subscribed when a monitor connects.
var defaultChannels = []string{events.ChannelAccessDecision, events.ChannelDeviceRegistered}

// WSMessage is one frame on the live feed, in either direction.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload names the channels to add or remove.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans fog node events out to connected monitors (front-desk screens,
// maintenance dashboards). Each monitor is an authenticated device.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	monitors map[*monitor]struct{}
	mu       sync.RWMutex
	dropped  atomic.Int64
}

var _ events.Broadcaster = (*Hub)(nil)

// monitor is one live feed connection.
type monitor struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	channels map[string]struct{}
	mu       sync.RWMutex
	deviceID string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Callers are authenticated devices, not browsers; CORS covers the rest.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// NewHub creates an empty Hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		monitors: make(map[*monitor]struct{}),
	}
}

// Run blocks until ctx is cancelled and then disconnects every monitor.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

func (h *Hub) add(m *monitor) {
	h.mu.Lock()
	h.monitors[m] = struct{}{}
	n := len(h.monitors)
	h.mu.Unlock()
	h.logger.Debug("monitor connected", "device_id", m.deviceID, "monitors", n)
}

// remove forgets m. Only the caller that deletes m from the map closes its
// send channel, so shutdown and disconnect never both close it.
func (h *Hub) remove(m *monitor) {
	h.mu.Lock()
	_, present := h.monitors[m]
	delete(h.monitors, m)
	n := len(h.monitors)
	h.mu.Unlock()

	if present {
		close(m.send)
	}
	h.logger.Debug("monitor disconnected", "device_id", m.deviceID, "monitors", n)
}

// Broadcast sends payload to every monitor subscribed to channel. A monitor
// whose buffer is full misses the event; Dropped counts those misses.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("encoding feed event failed", "channel", channel, "error", err)
		return
	}

	// Snapshot under the hub lock; monitor locks are taken after release.
	h.mu.RLock()
	targets := make([]*monitor, 0, len(h.monitors))
	for m := range h.monitors {
		targets = append(targets, m)
	}
	h.mu.RUnlock()

	for _, m := range targets {
		if m.subscribed(channel) && !m.trySend(data) {
			h.dropped.Add(1)
		}
	}
}

// ClientCount returns the number of connected monitors.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.monitors)
}

// Dropped returns how many events were skipped for slow monitors.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for m := range h.monitors {
		close(m.send)
		if m.conn != nil {
			m.conn.Close()
		}
		delete(h.monitors, m)
	}
}

func (h *Hub) pingInterval() time.Duration {
	if h.cfg.PingInterval <= 0 {
		return defaultWSPingInterval
	}
	return time.Duration(h.cfg.PingInterval) * time.Second
}

func (h *Hub) pongTimeout() time.Duration {
	if h.cfg.PongTimeout <= 0 {
		return defaultWSPongTimeout
	}
	return time.Duration(h.cfg.PongTimeout) * time.Second
}

func (h *Hub) maxMessageSize() int64 {
	if h.cfg.MaxMessageSize <= 0 {
		return defaultWSMaxMessageSize
	}
	return int64(h.cfg.MaxMessageSize)
}

// handleWebSocket attaches an authenticated device to the live feed,
// subscribed to access decisions and registrations.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	caller := deviceFromContext(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "device_id", caller.DeviceID, "error", err)
		return
	}

	m := &monitor{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, feedBufferSize),
		channels: make(map[string]struct{}, len(feedChannels)),
		deviceID: caller.DeviceID,
	}
	for _, ch := range defaultChannels {
		m.channels[ch] = struct{}{}
	}

	s.hub.add(m)

	go m.writeLoop()
	go m.readLoop()
}

func (m *monitor) readLoop() {
	defer func() {
		m.hub.remove(m)
		m.conn.Close()
	}()

	idle := m.hub.pingInterval() + m.hub.pongTimeout()
	m.conn.SetReadLimit(m.hub.maxMessageSize())
	m.conn.SetReadDeadline(time.Now().Add(idle)) //nolint:errcheck // a failed deadline surfaces as a read error
	m.conn.SetPongHandler(func(string) error {
		return m.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, data, err := m.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.hub.logger.Warn("monitor read failed", "device_id", m.deviceID, "error", err)
			}
			return
		}
		m.conn.SetReadDeadline(time.Now().Add(idle)) //nolint:errcheck // see above
		m.handle(data)
	}
}

func (m *monitor) writeLoop() {
	ticker := time.NewTicker(m.hub.pingInterval())
	defer func() {
		ticker.Stop()
		m.conn.Close()
	}()

	wait := m.hub.pongTimeout()
	for {
		select {
		case data, ok := <-m.send:
			if !ok {
				m.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			m.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // write error caught below
			if err := m.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			m.conn.SetWriteDeadline(time.Now().Add(wait)) //nolint:errcheck // ping error caught below
			if err := m.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (m *monitor) handle(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		m.reply("", WSTypeError, errorPayload("invalid JSON message"))
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		m.updateChannels(msg)
	case WSTypePing:
		m.reply(msg.ID, WSTypePong, nil)
	default:
		m.reply(msg.ID, WSTypeError, errorPayload("unknown message type: "+msg.Type))
	}
}

// updateChannels applies a subscribe or unsubscribe request and replies
// with the monitor's resulting channel list. Unknown channel names reject
// the whole request.
func (m *monitor) updateChannels(msg WSMessage) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		m.reply(msg.ID, WSTypeError, errorPayload("invalid payload"))
		return
	}
	var req WSSubscribePayload
	if err := json.Unmarshal(raw, &req); err != nil || len(req.Channels) == 0 {
		m.reply(msg.ID, WSTypeError, errorPayload("invalid "+msg.Type+" payload"))
		return
	}
	for _, ch := range req.Channels {
		if !slices.Contains(feedChannels, ch) {
			m.reply(msg.ID, WSTypeError, map[string]any{
				"message":  "unknown channel: " + ch,
				"channels": feedChannels,
			})
			return
		}
	}

	m.mu.Lock()
	for _, ch := range req.Channels {
		if msg.Type == WSTypeSubscribe {
			m.channels[ch] = struct{}{}
		} else {
			delete(m.channels, ch)
		}
	}
	current := make([]string, 0, len(m.channels))
	for ch := range m.channels {
		current = append(current, ch)
	}
	m.mu.Unlock()

	slices.Sort(current)
	m.reply(msg.ID, WSTypeResponse, map[string]any{"channels": current})
}

// trySend queues data without blocking. It reports false when the buffer is
// full or the monitor has already been removed.
func (m *monitor) trySend(data []byte) (sent bool) {
	defer func() {
		if recover() != nil {
			sent = false
		}
	}()

	select {
	case m.send <- data:
		return true
	default:
		return false
	}
}

func (m *monitor) subscribed(channel string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.channels[channel]
	return ok
}

func (m *monitor) reply(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	m.trySend(data)
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
