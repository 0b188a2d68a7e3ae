package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/neogend-core/internal/auth"
	"github.com/nerrad567/neogend-core/internal/infrastructure/config"
	"github.com/nerrad567/neogend-core/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeEvent = "event"
	WSTypeError = "error"

	// EventSessionRevoked is pushed right before the server closes a
	// channel whose credentials were revoked.
	EventSessionRevoked = "session.revoked"

	wsSendBufferSize = 32

	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
	defaultMaxMessageSize = 8192
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// revokedPayload tells the client why its session ended.
type revokedPayload struct {
	Reason string `json:"reason"`
}

// Hub tracks open session channels by account. It implements
// auth.EventSink: a version bump closes the affected channels.
type Hub struct {
	logger    *logging.Logger
	mu        sync.RWMutex
	clients   map[*WSClient]struct{}
	byAccount map[int64]map[*WSClient]struct{}
}

// WSClient is one open session channel.
type WSClient struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	accountID int64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:    logger,
		clients:   make(map[*WSClient]struct{}),
		byAccount: make(map[int64]map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then closes every channel.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	set, ok := h.byAccount[client.accountID]
	if !ok {
		set = make(map[*WSClient]struct{})
		h.byAccount[client.accountID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("session channel opened", "account_id", client.accountID, "clients", h.ClientCount())
}

// Unregister removes a client from the hub. Only the call that removes the
// client closes its send channel.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	existed := h.removeLocked(client)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("session channel closed", "account_id", client.accountID, "clients", h.ClientCount())
	}
}

func (h *Hub) removeLocked(client *WSClient) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	if set, ok := h.byAccount[client.accountID]; ok {
		delete(set, client)
		if len(set) == 0 {
			delete(h.byAccount, client.accountID)
		}
	}
	return true
}

// SessionRevoked closes the channels of the bumped account, or of every
// account for a global bump. Each channel receives a session.revoked event
// first.
func (h *Hub) SessionRevoked(_ context.Context, ev auth.SessionEvent) error {
	if ev.Global() {
		n := h.disconnect(h.snapshot(), string(ev.Reason))
		h.logger.Info("session channels closed", "reason", ev.Reason, "scope", "all", "closed", n)
		return nil
	}
	h.DisconnectAccount(ev.AccountID, string(ev.Reason))
	return nil
}

// DisconnectAccount closes every channel of one account.
func (h *Hub) DisconnectAccount(accountID int64, reason string) {
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.byAccount[accountID]))
	for c := range h.byAccount[accountID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if n := h.disconnect(clients, reason); n > 0 {
		h.logger.Info("session channels closed", "reason", reason, "account_id", accountID, "closed", n)
	}
}

func (h *Hub) disconnect(clients []*WSClient, reason string) int {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: EventSessionRevoked,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   revokedPayload{Reason: reason},
	})
	if err != nil {
		h.logger.Error("failed to marshal revocation message", "error", err)
		return 0
	}
	for _, c := range clients {
		c.trySend(data)
		h.Unregister(c)
	}
	return len(clients)
}

func (h *Hub) snapshot() []*WSClient {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	return clients
}

// ClientCount returns the number of open channels.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// AccountCount returns the number of accounts with at least one channel.
func (h *Hub) AccountCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byAccount)
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		h.removeLocked(client)
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
	}
}

// handleWebSocket upgrades to a session channel. Authentication is via a
// ticket from POST /auth/ws-ticket; the ticket's version must still match
// the stored one.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w)
		return
	}
	entry, ok := s.tickets.consume(ticket, time.Now())
	if !ok {
		writeUnauthorized(w)
		return
	}
	if current, err := s.ticketCurrent(r.Context(), entry); err != nil || !current {
		if err != nil {
			s.writeAuthError(w, r, err, "failed to open session channel")
			return
		}
		writeUnauthorized(w)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:       s.hub,
		conn:      conn,
		send:      make(chan []byte, wsSendBufferSize),
		accountID: entry.accountID,
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)

	// A bump between the check above and Register would have been missed.
	if current, err := s.ticketCurrent(r.Context(), entry); err != nil || !current {
		s.hub.DisconnectAccount(entry.accountID, "superseded")
	}
}

// ticketCurrent reports whether the account behind a ticket still exists
// at the version the ticket was issued for.
func (s *Server) ticketCurrent(ctx context.Context, entry ticketEntry) (bool, error) {
	acct, err := s.store.GetByIDAndNipol(ctx, entry.accountID, entry.nipol)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return acct.Version == entry.version, nil
}

func wsTimings(cfg config.WebSocketConfig) (ping, pong time.Duration, maxSize int64) {
	ping, pong, maxSize = defaultPingInterval, defaultPongTimeout, defaultMaxMessageSize
	if cfg.PingInterval > 0 {
		ping = time.Duration(cfg.PingInterval) * time.Second
	}
	if cfg.PongTimeout > 0 {
		pong = time.Duration(cfg.PongTimeout) * time.Second
	}
	if cfg.MaxMessageSize > 0 {
		maxSize = int64(cfg.MaxMessageSize)
	}
	return ping, pong, maxSize
}

func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	pingInterval, pongWait, maxSize := wsTimings(cfg)
	c.conn.SetReadLimit(maxSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "account_id", c.accountID, "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(message)
	}
}

func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval, pongWait, _ := wsTimings(cfg)
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.ClosePolicyViolation, EventSessionRevoked))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage answers application pings; the channel carries no other
// client requests.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendResponse("", WSTypeError, map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendResponse(msg.ID, WSTypeError, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

// trySend queues data for the client. Closed channels and full buffers are
// ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}
