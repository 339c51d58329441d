package chat

import (
	"slices"
	"sync"
)

// Session is the presence state of one live connection.
type Session struct {
	ConnID   string
	Username string
	Room     string

	seq uint64
}

// InRoom reports whether the session currently occupies a room.
func (s Session) InRoom() bool {
	return s.Room != ""
}

// Identified reports whether a username has been bound to the session.
func (s Session) Identified() bool {
	return s.Username != ""
}

// Registry maps connection ids to sessions. All reads and writes are
// serialized by a single mutex that is held only for the map access.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	nextSeq  uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
	}
}

// Put creates or overwrites the session for connID. An overwritten session
// keeps its registration order.
func (r *Registry) Put(connID, username, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[connID]; ok {
		s.Username = username
		s.Room = room
		return
	}

	r.nextSeq++
	r.sessions[connID] = &Session{
		ConnID:   connID,
		Username: username,
		Room:     room,
		seq:      r.nextSeq,
	}
}

// Get returns a copy of the session for connID.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[connID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// SetRoom sets the room of connID; an empty room clears it. Unknown
// connections are ignored.
func (r *Registry) SetRoom(connID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[connID]; ok {
		s.Room = room
	}
}

// Remove deletes the session for connID. Removing an unknown connection is a
// no-op.
func (r *Registry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, connID)
}

// FindByUsername returns the connection id of the earliest registered live
// session bound to username. When a user has several sessions open only that
// one is addressed.
func (r *Registry) FindByUsername(username string) (string, bool) {
	if username == "" {
		return "", false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var found *Session
	for _, s := range r.sessions {
		if s.Username != username {
			continue
		}
		if found == nil || s.seq < found.seq {
			found = s
		}
	}
	if found == nil {
		return "", false
	}
	return found.ConnID, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sessions)
}

// occupants returns copies of the sessions in room, in registration order.
func (r *Registry) occupants(room string) []Session {
	if room == "" {
		return nil
	}

	r.mu.Lock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		if s.Room == room {
			out = append(out, *s)
		}
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b Session) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return out
}
