package server

import "fmt"

// notifyTyping forwards a typing transition to the rest of the sender's room.
// Nothing is remembered about who is typing.
func (h *Hub) notifyTyping(connID string, starting bool) error {
	sender, ok := h.registry.Get(connID)
	if !ok {
		return fmt.Errorf("%w: typing", ErrNotJoined)
	}

	event := EventUserStopTyping
	notice := TypingNotice{User: sender.Username}
	if starting {
		event = EventUserTyping
		notice.DisplayName = sender.Name()
	}

	h.deliver(h.registry.MembersOf(sender.Room), connID, event, notice)
	return nil
}
