package ws

import "sync"

/*
Registry maps a logical user id to at most one live connection.  It is the
authoritative answer to "is this user online right now": an absent entry
means offline and routing to that user is skipped, never retried.

Registration is last-write-wins.  When a user opens a second connection the
previous handle is overwritten as the routing target but not closed; its
eventual disconnect is a no-op here because removal is keyed by handle
identity, not by user id.  Handlers run on per-connection goroutines, so the
map is mutex-guarded; it never touches persistence.
*/
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*client)}
}

// Register records or overwrites the user's live connection.
func (r *Registry) Register(userID string, c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[userID] = c
}

// Lookup returns the user's live connection, or false when the user is
// offline.
func (r *Registry) Lookup(userID string) (*client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

/*
Unregister removes the entry whose stored handle is exactly c and reports
whether such an entry existed.  A stale connection that was superseded by a
newer login does not match and leaves the newer mapping intact.
*/
func (r *Registry) Unregister(c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.conns[c.userID]; ok && current == c {
		delete(r.conns, c.userID)
		return true
	}
	return false
}

// ForEachExcept visits every live connection except the given one.  The
// snapshot is taken under the read lock; fn runs outside it and must not
// block.
func (r *Registry) ForEachExcept(except *client, fn func(*client)) {
	r.mu.RLock()
	snapshot := make([]*client, 0, len(r.conns))
	for _, c := range r.conns {
		if c != except {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range snapshot {
		fn(c)
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
