package presence

import "sync"

// Registry maps a user identity to its single active session. It is the
// source of truth for "is this user reachable right now": an identity is
// online exactly when it has an entry here.
type Registry interface {
	// Register binds identity to sessionID, overwriting any previous
	// binding. Last connection wins; the displaced session is not closed,
	// it just stops being the delivery target.
	Register(identity, sessionID string)

	// Unregister removes the binding only if sessionID is still the one
	// registered for identity, and reports whether it removed anything.
	// The guard keeps a stale disconnect from evicting a newer connection
	// of the same user.
	Unregister(identity, sessionID string) bool

	// Lookup returns the session currently bound to identity.
	Lookup(identity string) (string, bool)

	// Snapshot returns the identities currently online.
	Snapshot() []string
}

type memoryRegistry struct {
	mu         sync.RWMutex
	byIdentity map[string]string
}

// NewRegistry returns an in-memory Registry safe for concurrent use.
func NewRegistry() Registry {
	return &memoryRegistry{byIdentity: make(map[string]string)}
}

func (r *memoryRegistry) Register(identity, sessionID string) {
	r.mu.Lock()
	r.byIdentity[identity] = sessionID
	r.mu.Unlock()
}

func (r *memoryRegistry) Unregister(identity, sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byIdentity[identity]; !ok || cur != sessionID {
		return false
	}
	delete(r.byIdentity, identity)
	return true
}

func (r *memoryRegistry) Lookup(identity string) (string, bool) {
	r.mu.RLock()
	sid, ok := r.byIdentity[identity]
	r.mu.RUnlock()
	return sid, ok
}

func (r *memoryRegistry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		out = append(out, identity)
	}
	return out
}
