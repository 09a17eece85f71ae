package presence_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomchat/internal/presence"
)

func record(username, room string) presence.Record {
	return presence.Record{
		Identity: presence.Identity{Username: username, DisplayName: username + " D"},
		Room:     room,
		JoinedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func usernames(records []presence.Record) []string {
	names := make([]string, len(records))
	for i, rec := range records {
		names[i] = rec.Username
	}
	return names
}

func TestRegisterAndGet(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Attach(presence.Connection{ID: "c1", RemoteAddr: "10.0.0.1:5000"})

	_, ok := reg.Get("c1")
	assert.False(t, ok, "attached connection should have no record before join")

	reg.Register("c1", record("alice", "general"))

	rec, ok := reg.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", rec.Username)
	assert.Equal(t, "general", rec.Room)
	assert.Equal(t, "c1", rec.ConnectionID)

	conn, ok := reg.Connection("c1")
	require.True(t, ok)
	assert.Equal(t, "10.0.0.1:5000", conn.RemoteAddr)
}

func TestRegisterReplacesRecord(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("c1", record("alice", "general"))
	reg.Register("c1", record("alice", "random"))

	assert.Empty(t, reg.MembersOf("general"))
	assert.Equal(t, []string{"alice"}, usernames(reg.MembersOf("random")))
	assert.Equal(t, 1, reg.Len())
}

func TestUnregisterRemovesMembership(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("c1", record("alice", "general"))
	reg.Register("c2", record("bob", "general"))

	removed, ok := reg.Unregister("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", removed.Username)

	assert.Equal(t, []string{"bob"}, usernames(reg.MembersOf("general")))
	_, ok = reg.Get("c1")
	assert.False(t, ok)
	_, ok = reg.Connection("c1")
	assert.False(t, ok)
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Attach(presence.Connection{ID: "c1"})

	_, ok := reg.Unregister("missing")
	assert.False(t, ok)

	_, ok = reg.Unregister("c1")
	assert.False(t, ok, "connection that never joined has no record to return")
	assert.Zero(t, reg.Len())
}

func TestMembersOfJoinOrder(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("c1", record("alice", "general"))
	reg.Register("c2", record("bob", "general"))
	reg.Register("c3", record("carol", "random"))
	reg.Register("c4", record("dave", "general"))

	assert.Equal(t, []string{"alice", "bob", "dave"}, usernames(reg.MembersOf("general")))
	assert.Equal(t, []string{"carol"}, usernames(reg.MembersOf("random")))
	assert.Empty(t, reg.MembersOf("nowhere"))

	// A re-join moves the connection to the end of the new room.
	reg.Register("c1", record("alice", "general"))
	assert.Equal(t, []string{"bob", "dave", "alice"}, usernames(reg.MembersOf("general")))
}

func TestRoomsDisappearWhenEmpty(t *testing.T) {
	reg := presence.NewRegistry()
	reg.Register("c1", record("alice", "general"))
	reg.Register("c2", record("bob", "random"))
	reg.Register("c3", record("carol", "general"))

	assert.Equal(t, []presence.RoomSummary{
		{Room: "general", Count: 2},
		{Room: "random", Count: 1},
	}, reg.Rooms())

	reg.Unregister("c2")
	assert.Equal(t, []presence.RoomSummary{{Room: "general", Count: 2}}, reg.Rooms())
}

func TestIdentityName(t *testing.T) {
	assert.Equal(t, "Alice", presence.Identity{Username: "alice", DisplayName: "Alice"}.Name())
	assert.Equal(t, "alice", presence.Identity{Username: "alice"}.Name())
}

func TestConcurrentRegistryAccess(t *testing.T) {
	reg := presence.NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", id)
			reg.Attach(presence.Connection{ID: connID})
			reg.Register(connID, record(connID, "general"))
			_ = reg.MembersOf("general")
			_ = reg.Rooms()
			if id%2 == 0 {
				reg.Unregister(connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, reg.MembersOf("general"), 25)
	assert.Equal(t, 25, reg.Len())
}
