package presence

import (
	"sort"
	"sync"
)

type entry struct {
	record Record
	seq    uint64
}

// Registry maps every live connection to its presence record.
// It is safe for concurrent use; all maps are guarded by a single mutex.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]Connection
	records     map[string]entry
	seq         uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[string]Connection),
		records:     make(map[string]entry),
	}
}

// Attach records a newly established transport session. Attaching an ID that
// is already known replaces the connection metadata and keeps any record.
func (r *Registry) Attach(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[conn.ID] = conn
}

// Register inserts or replaces the presence record for connectionID.
// A replaced record is dropped entirely, including its old room.
func (r *Registry) Register(connectionID string, rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connectionID]; !ok {
		r.connections[connectionID] = Connection{ID: connectionID, CreatedAt: rec.JoinedAt}
	}

	rec.ConnectionID = connectionID
	r.seq++
	r.records[connectionID] = entry{record: rec, seq: r.seq}
}

// Unregister removes the connection and its presence record. It returns the
// removed record, if the connection had joined a room. Unknown IDs are a no-op.
func (r *Registry) Unregister(connectionID string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connections, connectionID)

	e, ok := r.records[connectionID]
	if !ok {
		return Record{}, false
	}
	delete(r.records, connectionID)
	return e.record, true
}

// Get returns the current presence record for connectionID.
func (r *Registry) Get(connectionID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.records[connectionID]
	return e.record, ok
}

// Connection returns the transport metadata for connectionID.
func (r *Registry) Connection(connectionID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.connections[connectionID]
	return conn, ok
}

// MembersOf returns every record currently in room, in join order.
func (r *Registry) MembersOf(room string) []Record {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.records))
	for _, e := range r.records {
		if e.record.Room == room {
			entries = append(entries, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	members := make([]Record, len(entries))
	for i, e := range entries {
		members[i] = e.record
	}
	return members
}

// Rooms returns every room that has at least one member, sorted by name.
func (r *Registry) Rooms() []RoomSummary {
	r.mu.RLock()
	counts := make(map[string]int)
	for _, e := range r.records {
		counts[e.record.Room]++
	}
	r.mu.RUnlock()

	rooms := make([]RoomSummary, 0, len(counts))
	for room, count := range counts {
		rooms = append(rooms, RoomSummary{Room: room, Count: count})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })
	return rooms
}

// Len returns the number of attached connections, joined or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connections)
}
