package server

import "sync"

// Registry is the single source of truth for which users currently hold a
// live connection. It maps in both directions so resolving a username and
// cleaning up a disconnect are both O(1). All methods are safe for
// concurrent use; both maps are updated under one lock so readers never
// observe a half-applied registration.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byUser map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byConn: make(map[string]string),
		byUser: make(map[string]string),
	}
}

// Register installs connId as the live connection for username. A previous
// connection registered for the same username is evicted (last
// registration wins, covering app restarts and reconnects); its id is
// returned so the caller can act on the stale connection.
func (r *Registry) Register(connId, username string) (evicted string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[username]; ok && old != connId {
		delete(r.byConn, old)
		evicted = old
	}

	if prev, ok := r.byConn[connId]; ok && prev != username {
		// connection re-registered under a different name
		delete(r.byUser, prev)
	}

	r.byConn[connId] = username
	r.byUser[username] = connId
	return evicted
}

// Unregister removes the mapping for connId, if present. Idempotent.
func (r *Registry) Unregister(connId string) (username string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok = r.byConn[connId]
	if !ok {
		return "", false
	}

	delete(r.byConn, connId)
	if r.byUser[username] == connId {
		delete(r.byUser, username)
	}
	return username, true
}

// Resolve returns the connection id currently registered for username.
func (r *Registry) Resolve(username string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connId, ok := r.byUser[username]
	return connId, ok
}

// Username returns the username registered for connId.
func (r *Registry) Username(connId string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	username, ok := r.byConn[connId]
	return username, ok
}

// OnlineUsernames returns a snapshot of every registered username.
func (r *Registry) OnlineUsernames() map[string]struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	online := make(map[string]struct{}, len(r.byUser))
	for username := range r.byUser {
		online[username] = struct{}{}
	}
	return online
}

func (r *Registry) NumOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}
