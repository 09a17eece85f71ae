package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/presence"
)

type eventHandler func(h *Hub, connID string, data json.RawMessage) error

func newHandlerTable() map[string]eventHandler {
	return map[string]eventHandler{
		EventJoinRoom:    (*Hub).handleJoin,
		EventSendMessage: (*Hub).handleSendMessage,
		EventTypingStart: (*Hub).handleTypingStart,
		EventTypingStop:  (*Hub).handleTypingStop,
	}
}

// handleJoin registers (or replaces) the connection's presence record and
// announces the new member to its room. A re-join does not notify the room
// the connection came from; that room simply stops counting it.
func (h *Hub) handleJoin(connID string, data json.RawMessage) error {
	var p joinRoomPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	room := strings.TrimSpace(p.Room)
	if room == "" {
		return fmt.Errorf("%w: room is required", ErrMalformedPayload)
	}
	if p.User == nil {
		return fmt.Errorf("%w: user is required", ErrMalformedPayload)
	}

	identity := p.User.identity()
	if identity.Username == "" {
		return fmt.Errorf("%w: user.username is required", ErrMalformedPayload)
	}

	previous, rejoined := h.registry.Get(connID)

	h.registry.Register(connID, presence.Record{
		Identity: identity,
		Room:     room,
		JoinedAt: h.now(),
	})

	h.announceSystem(room, connID, EventUserJoined, identity.Username+" joined the chat")
	count := h.announceRoomState(room)
	metrics.RoomsActive.Set(float64(len(h.registry.Rooms())))

	logEvent := h.logger.Info().
		Str("conn_id", connID).
		Str("username", identity.Username).
		Str("room", room).
		Int("count", count)
	if rejoined && previous.Room != room {
		logEvent = logEvent.Str("previous_room", previous.Room)
	}
	logEvent.Msg("user joined room")
	return nil
}

// handleDisconnect is the only place a connection's state is cleaned up.
func (h *Hub) handleDisconnect(connID, reason string) {
	defer h.recoverLoop("disconnect", connID)

	if sink, ok := h.sinks[connID]; ok {
		delete(h.sinks, connID)
		sink.Close()
		metrics.ConnectionsActive.Set(float64(len(h.sinks)))
	}

	rec, ok := h.registry.Unregister(connID)
	if !ok {
		h.logger.Info().Str("conn_id", connID).Str("reason", reason).Msg("unknown user disconnected")
		return
	}

	h.announceSystem(rec.Room, connID, EventUserLeft, rec.Username+" left the chat")
	count := h.announceRoomState(rec.Room)
	metrics.RoomsActive.Set(float64(len(h.registry.Rooms())))

	h.logger.Info().
		Str("conn_id", connID).
		Str("username", rec.Username).
		Str("room", rec.Room).
		Str("reason", reason).
		Int("remaining", count).
		Msg("user disconnected")
}

func (h *Hub) handleSendMessage(connID string, data json.RawMessage) error {
	var p sendMessagePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}
	if p.Message == nil {
		return fmt.Errorf("%w: message is required", ErrMalformedPayload)
	}
	h.warnRoomMismatch(connID, EventSendMessage, p.Room)

	return h.sendMessage(connID, *p.Message)
}

func (h *Hub) handleTypingStart(connID string, data json.RawMessage) error {
	return h.handleTyping(connID, data, EventTypingStart, true)
}

func (h *Hub) handleTypingStop(connID string, data json.RawMessage) error {
	return h.handleTyping(connID, data, EventTypingStop, false)
}

func (h *Hub) handleTyping(connID string, data json.RawMessage, event string, starting bool) error {
	var p typingPayload
	if len(data) > 0 {
		if err := decodePayload(data, &p); err != nil {
			return err
		}
	}
	h.warnRoomMismatch(connID, event, p.Room)

	return h.notifyTyping(connID, starting)
}

// warnRoomMismatch logs events whose declared room disagrees with the
// registry. The registry always wins.
func (h *Hub) warnRoomMismatch(connID, event, declared string) {
	if declared == "" {
		return
	}
	rec, ok := h.registry.Get(connID)
	if ok && rec.Room != declared {
		h.logger.Debug().
			Str("conn_id", connID).
			Str("event", event).
			Str("declared_room", declared).
			Str("room", rec.Room).
			Msg("event room differs from joined room; using joined room")
	}
}
