package web

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

const (
	// clientQueue is how many frames a live client may lag behind before
	// frames are dropped for it.
	clientQueue  = 4
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

type liveClient struct {
	conn *websocket.Conn
	send chan []byte
}

// hub fans rendered views out to WebSocket clients.
type hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu      sync.Mutex
	clients map[*liveClient]struct{}
	dropped int64
}

// newHub builds a hub. With a CORS policy, cross-origin upgrades are
// accepted for the same origins the JSON API allows; without one the
// upgrader's same-origin check applies.
func newHub(c *cors.Cors, logger *slog.Logger) *hub {
	h := &hub{
		logger:  logger,
		clients: make(map[*liveClient]struct{}),
	}
	if c != nil {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == "" || c.OriginAllowed(r)
		}
	}
	return h
}

// serve registers conn, queues initial (if any) and runs the client
// until it disconnects.
func (h *hub) serve(conn *websocket.Conn, initial []byte) {
	c := &liveClient{conn: conn, send: make(chan []byte, clientQueue)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if initial != nil {
		c.send <- initial
	}
	h.mu.Unlock()

	h.logger.Debug("live client connected", "remote", conn.RemoteAddr().String())

	go h.writeLoop(c)
	h.readLoop(c)
}

// readLoop discards inbound frames and detects disconnects.
func (h *hub) readLoop(c *liveClient) {
	defer h.remove(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("live client read ended", "error", err)
			}
			return
		}
	}
}

func (h *hub) writeLoop(c *liveClient) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// broadcast queues msg for every client, dropping it for clients whose
// queue is full.
func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.dropped++
		}
	}
}

func (h *hub) remove(c *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *hub) droppedFrames() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}
