// Package httpapi assembles the backend API router.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"kortstore/internal/http/handlers"
	"kortstore/internal/middleware"
	"kortstore/internal/realtime"
)

type Options struct {
	App            *handlers.App
	WS             *realtime.WSHandler
	Logger         zerolog.Logger
	AllowedOrigins []string
	LoginPerMinute int
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/healthz", opts.App.Health)

	loginLimit := opts.LoginPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}

	r.Route("/api", func(r chi.Router) {
		// Credential endpoints get a tighter per-IP budget.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(loginLimit, time.Minute))
			r.Post("/register", opts.App.Register)
			r.Post("/login", opts.App.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthJWT(opts.App.JWTSecret))
			r.Get("/me", opts.App.Me)
			r.Post("/logout", opts.App.Logout)
			r.Post("/process-payment", opts.App.ProcessPayment)
			r.Get("/my-products", opts.App.MyProducts)
		})
	})

	// WebSocket clients authenticate in-band with their first message, so
	// the route sits outside the JWT middleware.
	r.Get("/ws", opts.WS.ServeHTTP)

	return r
}
