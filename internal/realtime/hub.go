// Package realtime pushes account updates to connected clients over
// WebSocket. The server side is a per-user hub fed by a database change
// stream; the client side is a reconnecting listener.
package realtime

import (
	"sync"

	"github.com/rs/zerolog"
)

// Sender is one authenticated client connection.
type Sender interface {
	WriteJSON(v any) error
	Close() error
}

type userUpdateMessage struct {
	Type string `json:"type"`
}

// Hub tracks at most one connection per user. A new connection for a user
// replaces and closes the previous one.
type Hub struct {
	mu     sync.Mutex
	conns  map[string]Sender
	logger zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		conns:  make(map[string]Sender),
		logger: logger,
	}
}

func (h *Hub) Register(userID string, s Sender) {
	h.mu.Lock()
	prev := h.conns[userID]
	h.conns[userID] = s
	h.mu.Unlock()
	if prev != nil {
		_ = prev.Close()
	}
	h.logger.Debug().Str("user_id", userID).Msg("realtime: client registered")
}

// Unregister drops the connection only when it is still the current one, so
// a stale connection cannot evict its replacement.
func (h *Hub) Unregister(userID string, s Sender) {
	h.mu.Lock()
	if h.conns[userID] == s {
		delete(h.conns, userID)
	}
	h.mu.Unlock()
}

// NotifyUserUpdate tells the user's connection, if any, that their account
// changed. The payload carries no account data: the client refetches the
// profile through the API.
func (h *Hub) NotifyUserUpdate(userID string) {
	h.mu.Lock()
	s := h.conns[userID]
	h.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.WriteJSON(userUpdateMessage{Type: "user_update"}); err != nil {
		h.logger.Debug().Err(err).Str("user_id", userID).Msg("realtime: push failed, dropping client")
		h.Unregister(userID, s)
		_ = s.Close()
	}
}

// Shutdown closes every connection. Used during server teardown.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]Sender)
	h.mu.Unlock()
	for _, s := range conns {
		_ = s.Close()
	}
}
