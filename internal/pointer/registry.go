package pointer

import (
	"sync"

	"github.com/porthole/porthole/internal/window"
)

// Registry maps tokens handed to the platform back to their interceptors
type Registry struct {
	mu      sync.RWMutex
	next    Token
	entries map[Token]*Interceptor
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Token]*Interceptor)}
}

// Register stores i and returns its token. Tokens are never reused.
func (r *Registry) Register(i *Interceptor) Token {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries[r.next] = i
	return r.next
}

// Unregister forgets token. Unknown tokens are ignored.
func (r *Registry) Unregister(token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, token)
}

// Lookup returns the interceptor registered under token
func (r *Registry) Lookup(token Token) (*Interceptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.entries[token]
	return i, ok
}

// Len returns the number of registered interceptors
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Deliver routes a platform event to its interceptor. Events for a token
// that is no longer registered pass through untouched. The lock is not held
// while the interceptor runs, so it may unregister itself.
func (r *Registry) Deliver(token Token, kind EventKind, under window.Handle) Verdict {
	i, ok := r.Lookup(token)
	if !ok {
		return PassThrough
	}
	return i.handle(kind, under)
}
