// Package server wires HTTP handlers into a chi router for the chat
// application.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter configures and returns the router with all application routes.
func NewRouter(h *Handler, origins *OriginPolicy, logger zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(requestMetrics)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(_ *http.Request, origin string) bool { return origins.Allowed(origin) },
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/", h.Root)
	r.Get("/health", h.Health)
	r.Get("/ws", h.WebSocket)

	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/rooms", h.ListRooms)
		r.Get("/rooms/{room}/users", h.RoomUsers)
	})

	return r
}
