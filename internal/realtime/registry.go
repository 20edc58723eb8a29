package realtime

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/domain"
)

// Connection describes one registered live connection.
type Connection struct {
	ID          uuid.UUID
	Identity    domain.Identity
	ConnectedAt time.Time
}

// Registry holds the live connections of this process.
// Readers take the shared lock; add and remove are exclusive.
type Registry struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]Connection
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{conns: make(map[uuid.UUID]Connection)}
}

// Add stores c, replacing any entry with the same id.
func (r *Registry) Add(c Connection) {
	r.mu.Lock()
	r.conns[c.ID] = c
	r.mu.Unlock()
}

// Remove deletes the entry and returns it.
func (r *Registry) Remove(id uuid.UUID) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return c, ok
}

// Get returns the entry for id.
func (r *Registry) Get(id uuid.UUID) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// CountByRole returns live connection counts per role. Every role is present.
func (r *Registry) CountByRole() map[domain.Role]int {
	out := make(map[domain.Role]int, len(domain.Roles()))
	for _, role := range domain.Roles() {
		out[role] = 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.conns {
		out[c.Identity.Role]++
	}
	return out
}

// ByRole lists the connections with the given role, oldest first.
func (r *Registry) ByRole(role domain.Role) []Connection {
	r.mu.RLock()
	out := make([]Connection, 0)
	for _, c := range r.conns {
		if c.Identity.Role == role {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}
