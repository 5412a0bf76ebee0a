package bus

import "sync"

type listener[T any] struct {
	fn func(T)
}

// Bus delivers published values to registered listeners in registration
// order.
type Bus[T any] struct {
	mu        sync.RWMutex
	listeners []*listener[T]
}

// New returns an empty bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a function that removes exactly that
// registration. Calling the returned function more than once is harmless.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	l := &listener[T]{fn: fn}
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(l) })
	}
}

// Publish notifies every listener registered at the time of the call.
func (b *Bus[T]) Publish(value T) {
	b.mu.RLock()
	snapshot := make([]*listener[T], len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, l := range snapshot {
		l.fn(value)
	}
}

func (b *Bus[T]) remove(target *listener[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, l := range b.listeners {
		if l == target {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}
