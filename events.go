package deckhand

import "sync"

// emitter is a minimal subscription list. Subscribing returns a cancel
// function; emit calls every live subscriber outside the emitter's own lock.
//
// Internal state transitions never flow through emitters; they exist purely
// as the externally observable notification channel.
type emitter[T any] struct {
	mu      sync.Mutex
	nextID  int
	fns     map[int]func(T)
	onCount func(n int)
}

func (e *emitter[T]) subscribe(fn func(T)) (cancel func()) {
	e.mu.Lock()
	if e.fns == nil {
		e.fns = make(map[int]func(T))
	}
	id := e.nextID
	e.nextID++
	e.fns[id] = fn
	n := len(e.fns)
	onCount := e.onCount
	e.mu.Unlock()

	if onCount != nil {
		onCount(n)
	}

	return func() {
		e.mu.Lock()
		if _, ok := e.fns[id]; !ok {
			e.mu.Unlock()
			return
		}
		delete(e.fns, id)
		n := len(e.fns)
		onCount := e.onCount
		e.mu.Unlock()
		if onCount != nil {
			onCount(n)
		}
	}
}

func (e *emitter[T]) emit(v T) {
	e.mu.Lock()
	fns := make([]func(T), 0, len(e.fns))
	for _, fn := range e.fns {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

func (e *emitter[T]) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.fns)
}
