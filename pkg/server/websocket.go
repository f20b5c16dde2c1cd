package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
)

// ErrConnectionClosed is returned when a send targets a connection that
// has gone away.
var ErrConnectionClosed = errors.New("server: connection closed")

// wsHub owns the live WebSocket connections and implements
// broker.Transport. Writes are serialized per connection under a write
// deadline.
type wsHub struct {
	config *Config
	logger *slog.Logger

	upgrader websocket.Upgrader

	mu    sync.RWMutex
	conns map[string]*wsConn
}

type wsConn struct {
	id      string
	sock    *websocket.Conn
	writeMu sync.Mutex
}

func newWSHub(config *Config, logger *slog.Logger) *wsHub {
	return &wsHub{
		config: config,
		logger: logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		conns: make(map[string]*wsConn),
	}
}

// Send delivers one text frame to a connection, honoring the write
// deadline. Implements broker.Transport.
func (h *wsHub) Send(connID, msg string) error {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()
	if !ok {
		return ErrConnectionClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.sock.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout)); err != nil {
		return err
	}
	return c.sock.WriteMessage(websocket.TextMessage, []byte(msg))
}

// serve upgrades the request and runs the read loop until the peer goes
// away. onMessage is called per frame; onClose once, after the connection
// is deregistered.
func (h *wsHub) serve(w http.ResponseWriter, r *http.Request,
	onOpen func(connID string),
	onMessage func(ctx context.Context, connID, raw string),
	onClose func(connID string),
) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &wsConn{id: ulid.Make().String(), sock: sock}
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	logger := h.logger.With("conn_id", c.id)
	logger.Debug("connection established", "remote", r.RemoteAddr)
	onOpen(c.id)

	defer func() {
		h.mu.Lock()
		delete(h.conns, c.id)
		h.mu.Unlock()
		_ = sock.Close()
		onClose(c.id)
		logger.Debug("connection closed")
	}()

	sock.SetReadLimit(h.config.MaxMessageSize)
	for {
		if err := sock.SetReadDeadline(time.Now().Add(h.config.ReadTimeout)); err != nil {
			return
		}
		msgType, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("read failed", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		onMessage(r.Context(), c.id, string(data))
	}
}

// count returns the number of live connections.
func (h *wsHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// closeAll tears down every connection, used during shutdown.
func (h *wsHub) closeAll() {
	h.mu.Lock()
	conns := make([]*wsConn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = c.sock.Close()
	}
}
