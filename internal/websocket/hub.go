package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clanelo/internal/models"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Heartbeat interval for leaderboard version checks
	// Clients only refetch the leaderboard when the version changes
	versionHeartbeatInterval = 2 * time.Second

	// broadcastBuffer bounds progress events waiting for the hub loop
	broadcastBuffer = 1024
)

// VersionSource reports the leaderboard projection version
type VersionSource interface {
	GetLeaderboardVersion(ctx context.Context) (int64, error)
}

// Client represents a WebSocket client connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and pushes recalculation progress
// events and leaderboard version heartbeats to them
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	versions VersionSource

	mu          sync.RWMutex
	lastVersion int64
}

// VersionUpdate represents the version heartbeat message
type VersionUpdate struct {
	Type    string `json:"type"`
	Version int64  `json:"version"`
}

// NewHub creates a new WebSocket hub. versions may be nil to disable heartbeats.
func NewHub(versions VersionSource) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		clients:    make(map[*Client]bool),
		versions:   versions,
	}
}

// Run starts the WebSocket hub
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("websocket hub started")

	versionTicker := time.NewTicker(versionHeartbeatInterval)
	defer versionTicker.Stop()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", total).Msg("client connected")

			h.sendInitialVersion(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Debug().Int("clients", total).Msg("client disconnected")

		case message := <-h.broadcast:
			h.fanOut(message)

		case <-versionTicker.C:
			h.checkAndBroadcastVersion(ctx)

		case <-ctx.Done():
			log.Info().Msg("websocket hub shutting down")
			return
		}
	}
}

// Publish queues a recalculation progress event for every client. It never
// blocks the replay loop; events are dropped when the buffer is full.
func (h *Hub) Publish(event models.ProgressEvent) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal progress event")
		return
	}

	select {
	case h.broadcast <- message:
	default:
		log.Warn().Str("type", string(event.Type)).Msg("broadcast buffer full, dropping progress event")
	}
}

// fanOut sends a message to all clients, skipping slow ones
func (h *Hub) fanOut(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			log.Warn().Msg("client send buffer full, skipping")
		}
	}
}

// checkAndBroadcastVersion broadcasts the version when it has changed
func (h *Hub) checkAndBroadcastVersion(ctx context.Context) {
	if h.versions == nil {
		return
	}

	currentVersion, err := h.versions.GetLeaderboardVersion(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get leaderboard version")
		return
	}
	if currentVersion == h.lastVersion {
		return
	}
	h.lastVersion = currentVersion

	message, err := json.Marshal(VersionUpdate{Type: "VERSION_UPDATE", Version: currentVersion})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal version update")
		return
	}
	h.fanOut(message)
}

// sendInitialVersion sends the current version to a newly connected client
func (h *Hub) sendInitialVersion(ctx context.Context, client *Client) {
	if h.versions == nil {
		return
	}

	currentVersion, err := h.versions.GetLeaderboardVersion(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to get initial version")
		return
	}
	if h.lastVersion == 0 {
		h.lastVersion = currentVersion
	}

	message, err := json.Marshal(VersionUpdate{Type: "VERSION_UPDATE", Version: currentVersion})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal initial version")
		return
	}

	select {
	case client.send <- message:
	case <-time.After(2 * time.Second):
		log.Warn().Msg("timeout sending initial version, client may be slow")
	}
}

// GetClientCount returns the current number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// readPump drains the connection until the client goes away
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Msg("websocket unexpected close")
			}
			return
		}
		// clients only listen
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))

		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)

		// Add queued messages to the current websocket message
		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte{'\n'})
			w.Write(<-c.send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}

	// The hub closed the channel
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ServeWS handles WebSocket requests from clients
func ServeWS(hub *Hub, conn *websocket.Conn) {
	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	go client.writePump()

	// blocks until disconnect
	client.readPump()
}
