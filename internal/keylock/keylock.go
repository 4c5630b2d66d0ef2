// Package keylock provides scoped mutual exclusion keyed by arbitrary
// comparable values. Lock table entries are created on first acquisition and
// removed once the last holder or waiter releases, so the table stays
// bounded under high key cardinality.
package keylock

import "sync"

type entry struct {
	mu      sync.Mutex
	waiters int
}

// Locker serializes access per distinct key value. The zero value is ready
// to use.
type Locker[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
}

// Handle releases an acquisition. Release is idempotent: callers may release
// early to shorten the critical section and still defer Release for the
// error paths.
type Handle struct {
	mu       sync.Mutex
	release  func()
	released bool
}

// Release unlocks the key. Safe to call more than once; only the first call
// has effect.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.released = true
	if h.release != nil {
		h.release()
	}
}

// Acquire blocks until the key's mutex is held and returns the releasing
// handle. A zero-value key acquires a no-op handle.
func (l *Locker[K]) Acquire(key K) *Handle {
	var zero K
	if key == zero {
		return &Handle{}
	}
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		if l.entries == nil {
			l.entries = make(map[K]*entry)
		}
		e = &entry{}
		l.entries[key] = e
	}
	e.waiters++
	l.mu.Unlock()

	e.mu.Lock()
	return &Handle{release: func() { l.release(key, e) }}
}

func (l *Locker[K]) release(key K, e *entry) {
	l.mu.Lock()
	e.waiters--
	if e.waiters == 0 {
		delete(l.entries, key)
	}
	e.mu.Unlock()
	l.mu.Unlock()
}
