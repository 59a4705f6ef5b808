package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/validation"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period. A failed ping drops the client.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	protocolOfficial7 = "http://livereload.com/protocols/official-7"
)

//go:embed livereload.js
var clientScript []byte

// message is a LiveReload protocol frame.
type message struct {
	Command    string   `json:"command"`
	Protocols  []string `json:"protocols,omitempty"`
	ServerName string   `json:"serverName,omitempty"`
	Path       string   `json:"path,omitempty"`
	LiveCSS    bool     `json:"liveCSS,omitempty"`
}

// Client is one connected browser.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub tracks the browsers connected to the reload channel.
type Hub struct {
	clients        map[*Client]struct{}
	allowedOrigins []string
	serverName     string
	logger         logging.Logger
	mutex          sync.RWMutex
}

// NewHub creates a hub accepting connections from pages served by one of
// allowedOrigins (full origins or host:port).
func NewHub(allowedOrigins []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		clients:        make(map[*Client]struct{}),
		allowedOrigins: allowedOrigins,
		serverName:     "estatico",
		logger:         logger.WithComponent("livereload"),
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Notify tells every connected client to reload path and returns how many
// were reached. An empty path reloads the whole page.
func (h *Hub) Notify(path string) int {
	payload, err := json.Marshal(message{Command: "reload", Path: path, LiveCSS: true})
	if err != nil {
		return 0
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.clients {
		select {
		case client.send <- payload:
			sent++
		default:
			// Send buffer full, the client is not keeping up.
			h.remove(client)
		}
	}
	return sent
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		h.remove(client)
	}
}

// ServeHTTP upgrades the request to the reload channel.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := validation.ValidateOrigin(r.Header.Get("Origin"), h.allowedOrigins); err != nil {
		h.logger.Warn(r.Context(), err, "Rejected live-reload connection", "origin", r.Header.Get("Origin"))
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	// The page origin is on another port, so the library's same-host check
	// would refuse it; the origin was validated above.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(maxMessageSize)

	client := &Client{
		conn: conn,
		send: make(chan []byte, 16),
		hub:  h,
	}

	h.mutex.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mutex.Unlock()
	h.logger.Debug(r.Context(), "Client connected", "clients", count)

	go client.writePump()
	client.readPump(r.Context())
}

func (h *Hub) unregister(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.remove(client)
}

// remove must be called with the mutex held.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
}

func (h *Hub) hello() []byte {
	payload, _ := json.Marshal(message{
		Command:    "hello",
		Protocols:  []string{protocolOfficial7},
		ServerName: h.serverName,
	})
	return payload
}

// readPump answers the handshake and drops everything else until the
// connection goes away.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				c.hub.logger.Debug(ctx, "Client read ended", "error", err.Error())
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Command == "hello" {
			c.hub.mutex.RLock()
			if _, ok := c.hub.clients[c]; ok {
				select {
				case c.send <- c.hub.hello():
				default:
				}
			}
			c.hub.mutex.RUnlock()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func serveClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(clientScript)
}
