// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and read-only views of live room presence.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const serviceVersion = "1.0.0"

// Handler serves the HTTP endpoints of the chat service.
type Handler struct {
	hub      *Hub
	cfg      *Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the HTTP handlers for hub.
func NewHandler(hub *Hub, cfg *Config, origins *OriginPolicy, logger zerolog.Logger) *Handler {
	return &Handler{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
	}
}

// WebSocket upgrades the request and hands the connection to the hub, which
// starts the client's read and write pumps.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr, h.cfg, h.logger)
	if err := h.hub.Attach(client.Connection(), client); err != nil {
		h.logger.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("rejecting connection")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// Root describes the service and its endpoints.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     "roomchat",
		"version":  serviceVersion,
		"features": []string{"Real-time Chat", "Room Presence", "Typing Indicators"},
		"endpoints": []string{
			"GET /health",
			"GET /ws",
			"GET /api/chat/rooms",
			"GET /api/chat/rooms/{room}/users",
			"GET /metrics",
		},
	})
}

// Health reports liveness plus live connection and room counts.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	registry := h.hub.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": registry.Len(),
		"rooms":       len(registry.Rooms()),
	})
}

// ListRooms returns every room that currently has members.
func (h *Handler) ListRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.hub.Registry().Rooms())
}

// RoomUsers returns the same snapshot a room-users-updated event carries.
func (h *Handler) RoomUsers(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	writeJSON(w, http.StatusOK, newRoomUsers(h.hub.Registry().MembersOf(room)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
