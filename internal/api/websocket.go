package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FocuswithJustin/VoiceRef/core/ref"
	"github.com/FocuswithJustin/VoiceRef/internal/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Frame is one reply on a dictation stream. Every frame a client sends is
// answered by exactly one Frame, in order, until the server closes the
// stream.
type Frame struct {
	Type      string         `json:"type"` // "reference" or "error"
	Seq       int            `json:"seq"`  // 1-based index of the utterance on this connection
	Input     string         `json:"input"`
	Reference string         `json:"reference,omitempty"`
	Parts     *ref.Reference `json:"parts,omitempty"`
	Error     *APIError      `json:"error,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// Client is one dictation connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	bucket *tokenBucket
	remote string

	// requestID tags every log line of the stream with the handshake's ID.
	requestID string

	// Set by readPump before it closes send; writePump sends them after
	// the queued replies.
	closeCode int
	closeText string
}

// Hub tracks open dictation connections.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	logging.WebSocketEvent("client_connected", n, "remote_addr", c.remote)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		logging.WebSocketEvent("client_disconnected", n, "remote_addr", c.remote)
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// CloseAll sends a going-away close frame to every client and drops it.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range clients {
		c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.conn.Close()
	}
}

// isOriginAllowed checks origin against exact entries and "*.domain"
// wildcards. An empty list allows every origin.
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		switch {
		case allowed == "*", origin == allowed:
			return true
		case strings.HasPrefix(allowed, "*."):
			if strings.HasSuffix(origin, allowed[1:]) {
				return true
			}
		}
	}
	return false
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if !isOriginAllowed(origin, s.cfg.AllowedOrigins) {
				logging.WarnContext(r.Context(), "websocket origin rejected", "origin", origin)
				return false
			}
			return true
		},
	}
}

// handleWebSocket upgrades to a dictation stream.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logging.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.WebSocket.MaxMessageSize)

	rate := float64(s.cfg.WebSocket.MaxMessageRate)
	c := &Client{
		hub:    s.hub,
		conn:   conn,
		send:   make(chan []byte, 64),
		bucket: newTokenBucket(rate*2, rate, time.Now()),
		remote: getClientIP(r),

		requestID: logging.GetRequestID(r.Context()),
	}
	s.hub.register(c)

	go c.writePump()
	go s.readPump(c)
}

// readPump answers each utterance until the connection closes or the
// client exceeds its message rate.
func (s *Server) readPump(c *Client) {
	defer func() {
		c.hub.unregister(c)
		close(c.send)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// The handshake request's context ends when the handler returns.
	ctx := logging.WithRequestID(context.Background(), c.requestID)
	for seq := 1; ; seq++ {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn("websocket unexpected close", "error", err, "remote_addr", c.remote)
			}
			return
		}

		if allowed, _, _ := c.bucket.take(time.Now()); !allowed {
			logging.WebSocketEvent("rate_limited", c.hub.Count(), "remote_addr", c.remote)
			c.closeCode, c.closeText = websocket.ClosePolicyViolation, "Rate limit exceeded"
			return
		}

		frame := Frame{Type: "error", Seq: seq, Timestamp: timestamp()}
		if kind != websocket.TextMessage {
			frame.Error = &APIError{Code: "INVALID_FRAME", Message: "Utterances must be text frames"}
		} else {
			result := s.parse(ctx, string(message))
			frame.Input = result.Input
			if result.Error != nil {
				frame.Error = result.Error
			} else {
				frame.Type = "reference"
				frame.Reference = result.Reference
				frame.Parts = result.Parts
			}
		}

		data, err := json.Marshal(frame)
		if err != nil {
			logging.Error("failed to marshal websocket frame", "error", err)
			return
		}
		select {
		case c.send <- data:
		default:
			logging.WebSocketEvent("client_too_slow", c.hub.Count(), "remote_addr", c.remote)
			return
		}
	}
}

// writePump sends replies one per frame and keeps the connection alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				var payload []byte
				if c.closeCode != 0 {
					payload = websocket.FormatCloseMessage(c.closeCode, c.closeText)
				}
				c.conn.WriteMessage(websocket.CloseMessage, payload)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
