package chat

import (
	"sync"
)

// Registry is the single source of truth for who is online on this
// gateway. It maps a user id to every live connection it currently
// holds. All mutation is serialized behind one mutex and is O(1); no
// I/O ever runs under the lock.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Client // user -> conn_id -> client
	byConn map[string]*Client            // conn_id -> client
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Client),
		byConn: make(map[string]*Client),
	}
}

// Add registers a client. Registering the same conn id twice is a
// no-op. The returned bool reports whether the membership set changed,
// which is what drives a presence broadcast.
func (r *Registry) Add(c *Client) bool {
	if c == nil || c.UserID == "" || c.ConnID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[c.ConnID]; exists {
		return false
	}
	m := r.byUser[c.UserID]
	if m == nil {
		m = make(map[string]*Client)
		r.byUser[c.UserID] = m
	}
	m[c.ConnID] = c
	r.byConn[c.ConnID] = c
	return true
}

// Remove drops a client. Removing a client that was never registered is
// a silent no-op; disconnect races must not crash anything. The user
// entry disappears entirely once its last connection goes.
func (r *Registry) Remove(c *Client) bool {
	if c == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[c.ConnID]; !exists {
		return false
	}
	delete(r.byConn, c.ConnID)
	if m := r.byUser[c.UserID]; m != nil {
		delete(m, c.ConnID)
		if len(m) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	return true
}

// ListByUser returns the user's live connections; nil when offline.
func (r *Registry) ListByUser(user string) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m := r.byUser[user]
	if len(m) == 0 {
		return nil
	}
	out := make([]*Client, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}

// OnlineUsers returns a snapshot of the current key set.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser))
	for user := range r.byUser {
		out = append(out, user)
	}
	return out
}

// Online reports whether the user currently holds any connection.
func (r *Registry) Online(user string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[user]) > 0
}

func (r *Registry) GetByConnID(connID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[connID]
}

// ListAll snapshots every connection across all users; broadcast fan-out
// iterates this outside the lock.
func (r *Registry) ListAll() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.byConn))
	for _, c := range r.byConn {
		out = append(out, c)
	}
	return out
}
