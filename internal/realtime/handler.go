package realtime

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kortstore/internal/middleware"
)

const authDeadline = 10 * time.Second

type authMessage struct {
	Token string `json:"token"`
}

// wsConn serializes writes; gorilla connections allow one concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// WSHandler upgrades /ws requests and authenticates them. The client must
// send {"token": "..."} as its first message; anything else closes the
// connection.
type WSHandler struct {
	hub      *Hub
	secret   string
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *Hub, secret string, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		secret: secret,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("realtime: upgrade failed")
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authDeadline))
	var auth authMessage
	if err := conn.ReadJSON(&auth); err != nil || auth.Token == "" {
		_ = conn.Close()
		return
	}
	claims, err := middleware.VerifyJWT(h.secret, auth.Token)
	if err != nil {
		h.logger.Debug().Err(err).Msg("realtime: rejected token")
		_ = conn.Close()
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	sender := &wsConn{conn: conn}
	h.hub.Register(claims.ID, sender)
	defer func() {
		h.hub.Unregister(claims.ID, sender)
		_ = conn.Close()
	}()

	// Drain incoming frames until the client disconnects. Clients only talk
	// once, to authenticate, so everything after that is ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
