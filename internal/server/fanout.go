package server

import (
	"fmt"
	"strings"

	"github.com/Tyrowin/roomchat/internal/metrics"
)

const logPreviewLen = 50

// sendMessage relays a chat message to every member of the sender's room,
// the sender included, so clients render what the server actually broadcast.
func (h *Hub) sendMessage(connID, raw string) error {
	sender, ok := h.registry.Get(connID)
	if !ok {
		return fmt.Errorf("%w: send-message", ErrNotJoined)
	}

	text := strings.TrimSpace(raw)

	msg := ChatMessage{
		ID:      h.newID(),
		Message: text,
		User: MessageAuthor{
			Username:    sender.Username,
			DisplayName: sender.Name(),
			Year:        sender.Year,
			Branch:      sender.Branch,
		},
		Timestamp: h.now(),
		Type:      KindUser,
	}

	delivered := h.deliver(h.registry.MembersOf(sender.Room), "", EventReceiveMessage, msg)
	metrics.MessagesFannedOut.Inc()

	h.logger.Debug().
		Str("conn_id", connID).
		Str("username", sender.Username).
		Str("room", sender.Room).
		Int("delivered", delivered).
		Str("preview", preview(text)).
		Msg("message relayed")
	return nil
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= logPreviewLen {
		return text
	}
	return string(runes[:logPreviewLen]) + "..."
}
