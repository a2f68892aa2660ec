package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	sendBuffer        = 64
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	emptySweep        = 5 * time.Minute
	expiredSweep      = 30 * time.Minute
	inactiveThreshold = 2 * time.Hour
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Message - envelope pushed over the socket
type Message struct {
	Type         string        `json:"type"`
	SessionID    string        `json:"sessionId"`
	Notification *Notification `json:"notification,omitempty"`
	Progress     *Progress     `json:"progress,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

type room struct {
	id           string
	clients      map[string]*client
	last         []byte // latest progress, replayed to late joiners
	createdAt    time.Time
	lastActivity time.Time
}

// HubStats - counters exposed on the health endpoint
type HubStats struct {
	ActiveSessions   int       `json:"activeSessions"`
	TotalSessions    int       `json:"totalSessions"`
	TotalConnections int       `json:"totalConnections"`
	CurrentClients   int       `json:"currentClients"`
	StartTime        time.Time `json:"startTime"`
}

// Hub pushes notifications and progress to every socket subscribed to a
// design session.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room
	stats HubStats
	log   zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		rooms: make(map[string]*room),
		stats: HubStats{StartTime: time.Now()},
		log:   log,
	}
}

func (h *Hub) Notify(sessionID string, n Notification) {
	h.broadcast(sessionID, Message{Type: "notification", SessionID: sessionID, Notification: &n}, false)
}

func (h *Hub) Progress(sessionID string, p Progress) {
	h.broadcast(sessionID, Message{Type: "progress", SessionID: sessionID, Progress: &p}, true)
}

// ServeWS upgrades /ws?session={id}&user={id}
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	userID := r.URL.Query().Get("user")
	if sessionID == "" || userID == "" {
		http.Error(w, "session and user are required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("⚠️  [Hub] WebSocket upgrade failed")
		return
	}

	c := &client{conn: conn, userID: userID, send: make(chan []byte, sendBuffer)}
	h.join(sessionID, c)

	go h.writePump(c)
	go h.readPump(sessionID, c)
}

func (h *Hub) join(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.roomLocked(sessionID)
	if old, ok := rm.clients[c.userID]; ok {
		close(old.send)
	}
	rm.clients[c.userID] = c
	rm.lastActivity = time.Now()
	h.stats.TotalConnections++

	if rm.last != nil {
		c.send <- rm.last
	}

	h.log.Info().
		Str("session", sessionID).
		Str("user", c.userID).
		Int("clients", len(rm.clients)).
		Msg("👤 [Hub] Client joined")
}

func (h *Hub) leave(sessionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rm, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	// a reconnect may already have replaced this client
	if current, ok := rm.clients[c.userID]; ok && current == c {
		close(c.send)
		delete(rm.clients, c.userID)
		rm.lastActivity = time.Now()
		h.log.Info().Str("session", sessionID).Str("user", c.userID).Int("remaining", len(rm.clients)).Msg("👋 [Hub] Client left")
	}
}

func (h *Hub) roomLocked(sessionID string) *room {
	rm, ok := h.rooms[sessionID]
	if !ok {
		now := time.Now()
		rm = &room{id: sessionID, clients: make(map[string]*client), createdAt: now, lastActivity: now}
		h.rooms[sessionID] = rm
		h.stats.TotalSessions++
	}
	return rm
}

func (h *Hub) broadcast(sessionID string, msg Message, remember bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("❌ [Hub] Failed to encode message")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	rm := h.roomLocked(sessionID)
	rm.lastActivity = time.Now()
	if remember {
		rm.last = data
	}

	for userID, c := range rm.clients {
		select {
		case c.send <- data:
		default:
			// slow consumer
			close(c.send)
			delete(rm.clients, userID)
			h.log.Warn().Str("session", sessionID).Str("user", userID).Msg("⚠️  [Hub] Dropped slow client")
		}
	}
}

func (h *Hub) readPump(sessionID string, c *client) {
	defer func() {
		h.leave(sessionID, c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// clients only listen; reads exist to notice disconnects
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("⚠️  [Hub] WebSocket error")
			}
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
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
				h.log.Warn().Err(err).Msg("⚠️  [Hub] WebSocket write error")
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

// CleanupEmpty drops rooms without clients. Returns the number removed.
func (h *Hub) CleanupEmpty() int {
	return h.sweep(func(rm *room, _ time.Time) bool {
		return len(rm.clients) == 0
	})
}

// CleanupExpired drops rooms idle past the threshold, disconnecting their clients.
func (h *Hub) CleanupExpired() int {
	return h.sweep(func(rm *room, now time.Time) bool {
		return now.Sub(rm.lastActivity) > inactiveThreshold
	})
}

func (h *Hub) sweep(drop func(*room, time.Time) bool) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	cleaned := 0
	for id, rm := range h.rooms {
		if !drop(rm, now) {
			continue
		}
		for _, c := range rm.clients {
			close(c.send)
		}
		delete(h.rooms, id)
		cleaned++
	}
	if cleaned > 0 {
		h.log.Info().Int("cleaned", cleaned).Int("active", len(h.rooms)).Msg("🧹 [Hub] Cleaned up sessions")
	}
	return cleaned
}

// StartCleanup runs the sweep routines until ctx is done.
func (h *Hub) StartCleanup(ctx context.Context) {
	go func() {
		empty := time.NewTicker(emptySweep)
		expired := time.NewTicker(expiredSweep)
		defer empty.Stop()
		defer expired.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-empty.C:
				h.CleanupEmpty()
			case <-expired.C:
				h.CleanupExpired()
			}
		}
	}()
	h.log.Info().Msgf("🔄 [Hub] Started cleanup routines (Empty: %v, Expired: %v)", emptySweep, expiredSweep)
}

// Stats snapshot.
func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := h.stats
	stats.ActiveSessions = len(h.rooms)
	for _, rm := range h.rooms {
		stats.CurrentClients += len(rm.clients)
	}
	return stats
}
