package draft

import "sync"

type key struct {
	subject string
	orderID string
}

// Registry holds one Buffer per (subject, order).
type Registry struct {
	mu      sync.Mutex
	buffers map[key]*Buffer
}

func NewRegistry() *Registry {
	return &Registry{buffers: map[key]*Buffer{}}
}

// Get returns the caller's buffer for the order, creating it if needed.
func (r *Registry) Get(subject, orderID string) *Buffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{subject, orderID}
	b, ok := r.buffers[k]
	if !ok {
		b = NewBuffer(orderID)
		r.buffers[k] = b
	}
	return b
}

// Peek returns the buffer without creating one.
func (r *Registry) Peek(subject, orderID string) (*Buffer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.buffers[key{subject, orderID}]
	return b, ok
}

// HasPendingChanges is false when no buffer exists.
func (r *Registry) HasPendingChanges(subject, orderID string) bool {
	b, ok := r.Peek(subject, orderID)
	return ok && b.HasPendingChanges()
}

// Release forgets the buffer once it holds nothing.
func (r *Registry) Release(subject, orderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{subject, orderID}
	if b, ok := r.buffers[k]; ok && !b.HasPendingChanges() {
		delete(r.buffers, k)
	}
}

// EvictOrder drops every user's buffer for the order and reports how many
// were held.
func (r *Registry) EvictOrder(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.buffers {
		if k.orderID == orderID {
			delete(r.buffers, k)
			n++
		}
	}
	return n
}
