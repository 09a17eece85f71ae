package server

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Tyrowin/roomchat/internal/presence"
)

// Inbound event names.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventTypingStart = "typing-start"
	EventTypingStop  = "typing-stop"
)

// Outbound event names.
const (
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventRoomUsersUpdated = "room-users-updated"
	EventReceiveMessage   = "receive-message"
	EventUserTyping       = "user-typing"
	EventUserStopTyping   = "user-stop-typing"
	EventError            = "error"
)

// Message kinds carried in the "type" field.
const (
	KindSystem = "system"
	KindUser   = "user"
)

// Envelope is the JSON object carried by every WebSocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// profileValue accepts a JSON string or number, since clients send the
// academic year either way.
type profileValue string

func (v *profileValue) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*v = profileValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = profileValue(n.String())
	return nil
}

type userPayload struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Profile     struct {
		Year   profileValue `json:"year"`
		Branch profileValue `json:"branch"`
	} `json:"profile"`
}

func (u *userPayload) identity() presence.Identity {
	return presence.Identity{
		Username:    strings.TrimSpace(u.Username),
		DisplayName: strings.TrimSpace(u.DisplayName),
		Year:        string(u.Profile.Year),
		Branch:      string(u.Profile.Branch),
	}
}

type joinRoomPayload struct {
	Room string       `json:"room"`
	User *userPayload `json:"user"`
}

type sendMessagePayload struct {
	Room    string       `json:"room"`
	Message *string      `json:"message"`
	User    *userPayload `json:"user"`
}

type typingPayload struct {
	Room string       `json:"room"`
	User *userPayload `json:"user"`
}

// SystemNotice is the payload of user-joined and user-left.
type SystemNotice struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
}

// RoomUsers is the payload of room-users-updated.
type RoomUsers struct {
	Count int               `json:"count"`
	Users []presence.Member `json:"users"`
}

// MessageAuthor is the sender identity attached to a chat message.
type MessageAuthor struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Year        string `json:"year,omitempty"`
	Branch      string `json:"branch,omitempty"`
}

// ChatMessage is the payload of receive-message. It is never stored.
type ChatMessage struct {
	ID        string        `json:"id"`
	Message   string        `json:"message"`
	User      MessageAuthor `json:"user"`
	Timestamp time.Time     `json:"timestamp"`
	Type      string        `json:"type"`
}

// TypingNotice is the payload of user-typing and user-stop-typing.
type TypingNotice struct {
	User        string `json:"user"`
	DisplayName string `json:"displayName,omitempty"`
}

// ErrorNotice is sent only to the connection whose event was rejected.
type ErrorNotice struct {
	Code    string `json:"code"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func newRoomUsers(members []presence.Record) RoomUsers {
	users := make([]presence.Member, len(members))
	for i, rec := range members {
		users[i] = rec.Member()
	}
	return RoomUsers{Count: len(users), Users: users}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode %s envelope: %w", event, err)
	}
	return frame, nil
}

func decodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedPayload)
	}
	return env, nil
}

func decodePayload(data json.RawMessage, target any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
