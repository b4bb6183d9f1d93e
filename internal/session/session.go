// Package session resolves the current authenticated identity from the
// profile store and owns its lifecycle on the client side.
package session

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog"

	"kortstore/internal/domain"
	"kortstore/internal/store"
)

// versioned on-disk session record. Legacy profiles hold two competing user
// objects plus a separate token key; Current migrates them to this form on
// first read.
type record struct {
	Version  int    `json:"version"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role,omitempty"`
	Token    string `json:"token"`
}

// legacyUser mirrors the user objects persisted by old clients under
// kort_user / kortex_user.
type legacyUser struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"cargo"`
}

type Manager struct {
	store  store.Store
	logger zerolog.Logger
}

func NewManager(st store.Store, logger zerolog.Logger) *Manager {
	return &Manager{store: st, logger: logger}
}

// Current returns the active session, or nil when no identity is stored.
// When only legacy records exist, the more complete one wins (a record with
// email or role beats one without) and the unified form is written back once.
func (m *Manager) Current() *domain.Session {
	if rec := m.readVersioned(); rec != nil {
		return &domain.Session{Username: rec.Username, Email: rec.Email, Role: rec.Role, Token: rec.Token}
	}

	primary := m.readLegacy(store.KeyLegacyUserAlt)
	fallback := m.readLegacy(store.KeyLegacyUser)

	var chosen *legacyUser
	switch {
	case primary != nil && (primary.Email != "" || primary.Role != ""):
		chosen = primary
	case fallback != nil:
		chosen = fallback
	case primary != nil:
		chosen = primary
	}
	if chosen == nil {
		return nil
	}

	token := m.readToken()
	sess := &domain.Session{
		Username: chosen.Username,
		Email:    chosen.Email,
		Role:     chosen.Role,
		Token:    token,
	}
	m.migrate(sess)
	return sess
}

// Token returns the raw bearer token of the current session, if any.
func (m *Manager) Token() string {
	if sess := m.Current(); sess != nil {
		return sess.Token
	}
	return ""
}

// Set stores the session as the authoritative versioned record.
func (m *Manager) Set(sess domain.Session) error {
	data, err := json.Marshal(record{
		Version:  1,
		Username: sess.Username,
		Email:    sess.Email,
		Role:     sess.Role,
		Token:    sess.Token,
	})
	if err != nil {
		return err
	}
	return m.store.Set(store.KeySession, data)
}

// Clear removes every session key, legacy variants included. Store watchers
// pick the deletions up and refresh their UI.
func (m *Manager) Clear() {
	for _, key := range []string{
		store.KeySession,
		store.KeyLegacyUser,
		store.KeyLegacyUserAlt,
		store.KeyLegacyToken,
	} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("session: clear key failed")
		}
	}
}

func (m *Manager) readVersioned() *record {
	data, ok, err := m.store.Get(store.KeySession)
	if err != nil || !ok {
		return nil
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil || rec.Token == "" && rec.Username == "" {
		return nil
	}
	return &rec
}

func (m *Manager) readLegacy(key string) *legacyUser {
	data, ok, err := m.store.Get(key)
	if err != nil || !ok {
		return nil
	}
	var u legacyUser
	if err := json.Unmarshal(data, &u); err != nil {
		return nil
	}
	if u.Username == "" && u.Email == "" {
		return nil
	}
	return &u
}

func (m *Manager) readToken() string {
	data, ok, err := m.store.Get(store.KeyLegacyToken)
	if err != nil || !ok {
		return ""
	}
	// The token was stored both raw and JSON-quoted by different client
	// generations.
	token := strings.TrimSpace(string(data))
	var quoted string
	if err := json.Unmarshal(data, &quoted); err == nil {
		token = quoted
	}
	return token
}

func (m *Manager) migrate(sess *domain.Session) {
	if err := m.Set(*sess); err != nil {
		m.logger.Warn().Err(err).Msg("session: migrate legacy record failed")
		return
	}
	for _, key := range []string{store.KeyLegacyUser, store.KeyLegacyUserAlt, store.KeyLegacyToken} {
		if err := m.store.Delete(key); err != nil {
			m.logger.Warn().Err(err).Str("key", key).Msg("session: drop legacy key failed")
		}
	}
	m.logger.Debug().Str("username", sess.Username).Msg("session: migrated legacy record")
}
