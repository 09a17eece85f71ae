// Package presence tracks which live connection belongs to which chat room.
//
// The Registry is the only owner of connection and presence state. Room
// membership is never stored on its own; it is recomputed from the registry
// every time it is asked for, so a snapshot can never drift from the
// connections that are actually registered.
package presence

import "time"

// Connection is one live transport session between a client and the server.
type Connection struct {
	ID         string
	RemoteAddr string
	CreatedAt  time.Time
}

// Identity is the already-resolved chat identity a client presents.
type Identity struct {
	Username    string
	DisplayName string
	Year        string
	Branch      string
}

// Name returns the display name, falling back to the username.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Username
}

// Record associates a connection's identity with the room it joined.
type Record struct {
	Identity
	Room         string
	JoinedAt     time.Time
	ConnectionID string
}

// Member is the public view of a Record that is shared with room peers.
type Member struct {
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Member converts the record into the shape sent in room snapshots.
func (r Record) Member() Member {
	return Member{
		Username:    r.Username,
		DisplayName: r.DisplayName,
		JoinedAt:    r.JoinedAt,
	}
}

// RoomSummary reports a non-empty room and how many connections are in it.
type RoomSummary struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}
