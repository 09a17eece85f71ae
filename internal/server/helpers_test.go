package server_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/server"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// recorder is an in-memory Sink that keeps every frame it was sent.
type recorder struct {
	id string

	mu     sync.Mutex
	frames []server.Envelope
	full   bool
	panics bool
	closed bool
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(frame []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.panics {
		panic("sink exploded")
	}
	if r.closed || r.full {
		return false
	}

	var env server.Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		panic(fmt.Sprintf("hub sent invalid frame %q: %v", frame, err))
	}
	r.frames = append(r.frames, env)
	return true
}

func (r *recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recorder) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// take returns and clears the frames received so far.
func (r *recorder) take() []server.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	frames := r.frames
	r.frames = nil
	return frames
}

func eventNames(frames []server.Envelope) []string {
	names := make([]string, len(frames))
	for i, f := range frames {
		names[i] = f.Event
	}
	return names
}

func decodeData[T any](t *testing.T, env server.Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), "decoding %s payload", env.Event)
	return v
}

// lastOf returns the payload of the last frame named event.
func lastOf[T any](t *testing.T, frames []server.Envelope, event string) T {
	t.Helper()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Event == event {
			return decodeData[T](t, frames[i])
		}
	}
	t.Fatalf("no %s event in %v", event, eventNames(frames))
	var zero T
	return zero
}

func newTestHub(t *testing.T) *server.Hub {
	t.Helper()

	seq := 0
	hub := server.NewHub(presence.NewRegistry(), zerolog.Nop(),
		server.WithClock(func() time.Time { return testNow }),
		server.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("msg-%d", seq)
		}),
	)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(time.Second) })
	return hub
}

func attach(t *testing.T, hub *server.Hub, id string) *recorder {
	t.Helper()
	sink := &recorder{id: id}
	require.NoError(t, hub.Attach(presence.Connection{ID: id, RemoteAddr: "127.0.0.1:1", CreatedAt: testNow}, sink))
	return sink
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(server.Envelope{Event: event, Data: raw})
	require.NoError(t, err)
	return out
}

func user(username string) map[string]any {
	return map[string]any{
		"username":    username,
		"displayName": username + " Display",
		"profile":     map[string]any{"year": "3", "branch": "CE"},
	}
}

func join(t *testing.T, hub *server.Hub, id, username, room string) {
	t.Helper()
	require.NoError(t, hub.HandleFrame(id, frame(t, server.EventJoinRoom, map[string]any{
		"room": room,
		"user": user(username),
	})))
}

func say(t *testing.T, hub *server.Hub, id, room, text string) error {
	t.Helper()
	return hub.HandleFrame(id, frame(t, server.EventSendMessage, map[string]any{
		"room":    room,
		"message": text,
		"user":    map[string]any{"username": "ignored"},
	}))
}
