package server

import (
	"github.com/Tyrowin/roomchat/internal/metrics"
	"github.com/Tyrowin/roomchat/internal/presence"
)

// announceRoomState sends the current membership of room to everyone in it and
// returns the member count that was sent.
func (h *Hub) announceRoomState(room string) int {
	members := h.registry.MembersOf(room)
	state := newRoomUsers(members)
	h.deliver(members, "", EventRoomUsersUpdated, state)
	return state.Count
}

// announceSystem sends a one-shot system notice to every member of room except
// the connection the notice is about.
func (h *Hub) announceSystem(room, except, event, text string) {
	h.deliver(h.registry.MembersOf(room), except, event, SystemNotice{
		Message:   text,
		Timestamp: h.now(),
		Type:      KindSystem,
	})
}

// deliver encodes payload once and queues it on the sink of every member,
// skipping except. Sinks whose queue is full are dropped after the loop.
func (h *Hub) deliver(members []presence.Record, except, event string, payload any) int {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("encoding outbound event")
		return 0
	}

	var failed []Sink
	delivered := 0
	for _, rec := range members {
		if rec.ConnectionID == except {
			continue
		}
		sink, ok := h.sinks[rec.ConnectionID]
		if !ok {
			continue
		}
		if !sink.Send(frame) {
			failed = append(failed, sink)
			continue
		}
		delivered++
	}

	h.dropSinks(failed)
	return delivered
}

// dropSinks closes sinks that could not keep up. Closing the transport makes
// the client's read pump exit, which detaches the connection the usual way.
func (h *Hub) dropSinks(sinks []Sink) {
	for _, sink := range sinks {
		if _, ok := h.sinks[sink.ID()]; !ok {
			continue
		}
		delete(h.sinks, sink.ID())
		sink.Close()
		metrics.DeliveriesDropped.Inc()
		h.logger.Warn().Str("conn_id", sink.ID()).Msg("connection dropped due to full send buffer")
	}
	metrics.ConnectionsActive.Set(float64(len(h.sinks)))
}
