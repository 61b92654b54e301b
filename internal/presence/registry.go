package presence

import (
	"sync"

	"github.com/samber/lo"
)

// Registry is the single owner of session state. Every mutation of the
// session map also updates the room index under the same lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ConnID]Session
	index    *roomIndex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[ConnID]Session),
		index:    newRoomIndex(),
	}
}

// Join installs a session for id. Any session the connection already holds
// is removed first, so a connection never appears in two rooms. Invalid
// input is rejected with an error wrapping ErrInvalidArgument before any
// state changes.
func (r *Registry) Join(id ConnID, username, room string) (Session, error) {
	req, err := JoinRequest{Username: username, Room: room}.normalize()
	if err != nil {
		return Session{}, err
	}

	session := Session{ConnID: id, Username: req.Username, Room: req.Room}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prior, ok := r.sessions[id]; ok {
		r.index.remove(prior.Room, id)
	}
	r.sessions[id] = session
	r.index.add(session.Room, id)
	return session, nil
}

// Get looks up the session held by id.
func (r *Registry) Get(id ConnID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, ok := r.sessions[id]
	return session, ok
}

// Remove deletes and returns the session held by id. Removing an absent
// session reports false and is not an error.
func (r *Registry) Remove(id ConnID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	r.index.remove(session.Room, id)
	return session, true
}

// MembersOf returns the sessions currently in room, in join order.
func (r *Registry) MembersOf(room string) []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Map(r.index.members(room), func(id ConnID, _ int) Session {
		return r.sessions[id]
	})
}

// Len reports the number of joined connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Rooms lists the non-empty rooms in lexical order.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index.names()
}
