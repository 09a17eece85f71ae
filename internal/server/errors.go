package server

import "errors"

var (
	// ErrNotJoined is returned for message and typing events from a
	// connection that has not joined a room.
	ErrNotJoined = errors.New("connection has not joined a room")

	// ErrMalformedPayload is returned when a frame or its data is missing
	// required fields or is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrUnknownEvent is returned for event names with no registered handler.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrHubClosed is returned by hub requests made after shutdown.
	ErrHubClosed = errors.New("hub is shut down")

	errHandlerPanic = errors.New("event handler panicked")
)

// errorCode maps a rejection to the code sent back in the error event.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotJoined):
		return "not-joined"
	case errors.Is(err, ErrMalformedPayload):
		return "malformed-payload"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown-event"
	default:
		return "internal"
	}
}
