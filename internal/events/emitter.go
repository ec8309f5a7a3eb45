// Package events provides a small per-service subscriber registry.
//
// Each core service owns its own Emitter instead of sharing a global
// bus, so tests can instantiate isolated instances.
package events

import "sync"

// Emitter fans a value out to subscribed listeners.
type Emitter[T any] struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]func(T)
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{listeners: make(map[int]func(T))}
}

// Subscribe registers a listener and returns its unsubscribe function.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.listeners, id)
	}
}

// Emit delivers v to every listener. A panicking listener is contained
// so it cannot take down the emitting service.
func (e *Emitter[T]) Emit(v T) {
	e.mu.RLock()
	fns := make([]func(T), 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.RUnlock()

	for _, fn := range fns {
		func() {
			defer func() { recover() }()
			fn(v)
		}()
	}
}

// Len returns the number of subscribed listeners.
func (e *Emitter[T]) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
