// Package presence tracks which live connection currently represents each user.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"boingbox-backend/pkg/metrics"
)

// Registry maps a user to their most recent connection. It is process local
// and safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]string)}
}

// Register maps userID to connID, replacing any earlier connection.
func (r *Registry) Register(userID uuid.UUID, connID string) {
	r.mu.Lock()
	r.entries[userID] = connID
	n := len(r.entries)
	r.mu.Unlock()

	metrics.PresenceOnlineUsers.Set(float64(n))
}

// Lookup returns the connection registered for userID
func (r *Registry) Lookup(userID uuid.UUID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connID, ok := r.entries[userID]
	return connID, ok
}

// Unregister removes the first entry whose connection is connID and returns
// its user. A connection that was already superseded by a newer
// registration matches nothing, so the newer mapping survives.
func (r *Registry) Unregister(connID string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer func() {
		n := len(r.entries)
		r.mu.Unlock()
		metrics.PresenceOnlineUsers.Set(float64(n))
	}()

	for userID, c := range r.entries {
		if c == connID {
			delete(r.entries, userID)
			return userID, true
		}
	}
	return uuid.Nil, false
}

// Count returns the number of registered users
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
