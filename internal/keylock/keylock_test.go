package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestSerializesSameKey(t *testing.T) {
	var l Locker[string]
	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := l.Acquire("alice")
			defer h.Release()
			v := counter
			time.Sleep(time.Microsecond)
			counter = v + 1
		}()
	}
	wg.Wait()
	if counter != 50 {
		t.Fatalf("lost updates: counter=%d", counter)
	}
}

func TestDistinctKeysDoNotBlock(t *testing.T) {
	var l Locker[int64]
	h1 := l.Acquire(1)
	done := make(chan struct{})
	go func() {
		h2 := l.Acquire(2)
		h2.Release()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("acquisition of a distinct key blocked")
	}
	h1.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	var l Locker[string]
	h := l.Acquire("alice")
	h.Release()
	h.Release()
	// A second acquisition must succeed after the double release.
	h2 := l.Acquire("alice")
	h2.Release()
}

func TestTableShrinksToZero(t *testing.T) {
	var l Locker[string]
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := l.Acquire("bob")
			h.Release()
		}()
	}
	wg.Wait()
	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Fatalf("lock table not empty: %d entries", n)
	}
}

func TestZeroKeyIsNoop(t *testing.T) {
	var l Locker[string]
	h1 := l.Acquire("")
	h2 := l.Acquire("")
	h1.Release()
	h2.Release()
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) != 0 {
		t.Fatalf("zero key must not create entries")
	}
}
