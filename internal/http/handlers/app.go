// Package handlers holds the HTTP handlers of the backend API. Error bodies
// are {"error": message} with user-facing Portuguese messages, matching what
// the storefront renders verbatim.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"kortstore/internal/domain"
	"kortstore/internal/events"
	"kortstore/internal/middleware"
)

// Locator resolves a client IP to a display location plus coordinates.
type Locator interface {
	Locate(ip string) (location, latitude, longitude string, ok bool)
}

// App bundles the dependencies shared by all handlers.
type App struct {
	Logger               zerolog.Logger
	JWTSecret            string
	AllowLegacyPlaintext bool
	Accounts             domain.AccountRepository
	Orders               domain.OrderRepository
	Events               events.Publisher
	Geo                  Locator
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, map[string]string{"error": message})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
