package websocket

import "sync"

// Registry maps a user id to its live connection. It only knows about
// sockets held by this process.
type Registry interface {
	// Set registers c for userID, replacing any previous entry.
	Set(userID string, c *Client)
	Get(userID string) (*Client, bool)
	Remove(userID string)
	// Release removes the entry only if it still points at c. It reports
	// whether an entry was removed.
	Release(userID string, c *Client) bool
	// Snapshot copies the current userID -> client entries.
	Snapshot() map[string]*Client
}

type MemoryRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{clients: make(map[string]*Client)}
}

func (r *MemoryRegistry) Set(userID string, c *Client) {
	r.mu.Lock()
	r.clients[userID] = c
	r.mu.Unlock()
}

func (r *MemoryRegistry) Get(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[userID]
	return c, ok
}

func (r *MemoryRegistry) Remove(userID string) {
	r.mu.Lock()
	delete(r.clients, userID)
	r.mu.Unlock()
}

func (r *MemoryRegistry) Release(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[userID]; ok && current == c {
		delete(r.clients, userID)
		return true
	}
	return false
}

func (r *MemoryRegistry) Snapshot() map[string]*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Client, len(r.clients))
	for userID, c := range r.clients {
		out[userID] = c
	}
	return out
}

// Stale returns registered clients that are no longer open, keyed by user id.
func Stale(r Registry) map[string]*Client {
	stale := make(map[string]*Client)
	for userID, c := range r.Snapshot() {
		if !c.IsOpen() {
			stale[userID] = c
		}
	}
	return stale
}
