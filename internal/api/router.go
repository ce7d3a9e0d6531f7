package api

import (
	"context"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/relay"
	"github.com/turbochat/relay/internal/store"
)

// NewRouter wires the full HTTP surface: the relay's WebSocket endpoint
// plus the collaborator endpoints and operational routes.
func NewRouter(base context.Context, st store.Store, b bus.Bus, hub *relay.Hub, opts relay.Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// Chat widgets are embedded on arbitrary shop pages.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := NewHandler(st)
	ws := NewWSHandler(base, st, b, hub, opts)

	r.Get("/ws", ws.ServeHTTP)
	r.Post("/auth", h.Auth)
	r.Post("/guests", h.Guests)
	r.Post("/sync", h.Sync)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
