package handler

import "sync"

// Registry maps a transaction type to its handlers in registration order.
// It is filled at start-up; lookups are safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]Handler)}
}

// Register appends h to the handlers of h.Type().
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = append(r.handlers[h.Type()], h)
}

// HandlersFor returns a copy of the handlers registered for txType.
func (r *Registry) HandlersFor(txType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hs := r.handlers[txType]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Types lists every type with at least one handler.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t, hs := range r.handlers {
		if len(hs) > 0 {
			types = append(types, t)
		}
	}
	return types
}
