// Package registry tracks which identities are connected right now.
//
// The registry is the single source of truth for presence: a user is
// online iff at least one of their connections holds a live record.
// The persisted online flag on user profiles is a best-effort
// projection written elsewhere, never consulted here.
package registry

import (
	"sort"
	"sync"
	"time"
)

// Identity is the authenticated principal bound to a connection. It is
// resolved once at CONNECT and never re-derived from per-message data.
type Identity struct {
	UserID   string
	Username string
	Roles    []string
}

// ConnectionRecord is the registry's view of one live connection. The
// registry owns the record; Lookup and Remove hand out copies.
type ConnectionRecord struct {
	ConnectionID  string
	Identity      Identity
	ConnectedAt   time.Time
	Subscriptions map[string]struct{}
}

func (r *ConnectionRecord) clone() ConnectionRecord {
	out := *r
	out.Subscriptions = make(map[string]struct{}, len(r.Subscriptions))
	for destination := range r.Subscriptions {
		out.Subscriptions[destination] = struct{}{}
	}
	return out
}

// Registry is a concurrency-safe dual index: connectionID to record,
// and userID to the set of that user's live connectionIDs. Both indices
// mutate under one lock so no caller ever observes a half-updated pair.
type Registry struct {
	mu     sync.RWMutex
	byConn map[string]*ConnectionRecord
	byUser map[string]map[string]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byConn: make(map[string]*ConnectionRecord),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Authenticate inserts or replaces the record for connectionID.
// Re-authentication overwrites rather than duplicates; when the new
// identity belongs to a different user the reverse index moves in the
// same critical section.
func (r *Registry) Authenticate(connectionID string, identity Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.byConn[connectionID]; ok {
		r.unindexUserLocked(previous.Identity.UserID, connectionID)
	}

	r.byConn[connectionID] = &ConnectionRecord{
		ConnectionID:  connectionID,
		Identity:      identity,
		ConnectedAt:   time.Now().UTC(),
		Subscriptions: make(map[string]struct{}),
	}

	conns := r.byUser[identity.UserID]
	if conns == nil {
		conns = make(map[string]struct{})
		r.byUser[identity.UserID] = conns
	}
	conns[connectionID] = struct{}{}
}

// Lookup returns a copy of the record for connectionID. A connection
// with no record is unauthenticated.
func (r *Registry) Lookup(connectionID string) (ConnectionRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.byConn[connectionID]
	if !ok {
		return ConnectionRecord{}, false
	}
	return record.clone(), true
}

// Remove deletes the record for connectionID and returns it. Removing
// an absent connection is a no-op, not an error, so DISCONNECT stays
// idempotent.
func (r *Registry) Remove(connectionID string) (ConnectionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byConn[connectionID]
	if !ok {
		return ConnectionRecord{}, false
	}
	delete(r.byConn, connectionID)
	r.unindexUserLocked(record.Identity.UserID, connectionID)
	return record.clone(), true
}

// AddSubscription records a destination on the connection. Returns
// false when the connection has no record.
func (r *Registry) AddSubscription(connectionID string, destination string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.byConn[connectionID]
	if !ok {
		return false
	}
	record.Subscriptions[destination] = struct{}{}
	return true
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Connections returns the live connectionIDs for userID, sorted for
// deterministic fan-out.
func (r *Registry) Connections(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser[userID]))
	for connectionID := range r.byUser[userID] {
		out = append(out, connectionID)
	}
	sort.Strings(out)
	return out
}

// OnlineUsers returns a snapshot of the distinct identities currently
// connected, deduplicated by userID. The snapshot is consistent at the
// instant of the call; it is not a live view.
func (r *Registry) OnlineUsers() []Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.byUser))
	out := make([]Identity, 0, len(r.byUser))
	for _, record := range r.byConn {
		if _, ok := seen[record.Identity.UserID]; ok {
			continue
		}
		seen[record.Identity.UserID] = struct{}{}
		out = append(out, record.Identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// unindexUserLocked removes connectionID from the reverse index and
// drops the user entry when it empties, preserving the invariant that
// a userID appears iff it has at least one live connection.
func (r *Registry) unindexUserLocked(userID string, connectionID string) {
	conns, ok := r.byUser[userID]
	if !ok {
		return
	}
	delete(conns, connectionID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
	}
}
