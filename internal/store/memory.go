package store

import (
	"context"
	"encoding/json"
	"sync"
)

// Memory is a map-backed Store used by tests and by the engine's unit
// harness. Values are kept JSON-encoded so reads hand out independent
// copies, matching the SQLite backend's value semantics. It counts write
// operations and supports failure injection through Hook.
type Memory[K comparable, V any] struct {
	mu     sync.Mutex
	items  map[K][]byte
	nextID int64
	setKey func(*V, int64)
	writes int

	// Hook, when set, runs before each mutating operation; returning an
	// error aborts the operation with that error.
	Hook func(op string) error
}

// NewMemory returns a store with caller-assigned keys.
func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{items: make(map[K][]byte)}
}

// NewMemoryAutoInc returns an int64-keyed store that assigns sequential
// keys on Insert. setKey, when non-nil, embeds the assigned key into the
// value before it is stored.
func NewMemoryAutoInc[V any](setKey func(*V, int64)) *Memory[int64, V] {
	return &Memory[int64, V]{items: make(map[int64][]byte), setKey: setKey}
}

// Writes returns the number of mutating calls that reached the store.
func (m *Memory[K, V]) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory[K, V]) hook(op string) error {
	if m.Hook != nil {
		return m.Hook(op)
	}
	return nil
}

func (m *Memory[K, V]) Get(_ context.Context, key K) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var value V
	data, ok := m.items[key]
	if !ok {
		return value, ErrNotFound
	}
	if err := json.Unmarshal(data, &value); err != nil {
		return value, err
	}
	return value, nil
}

func (m *Memory[K, V]) Has(_ context.Context, key K) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[key]
	return ok, nil
}

func (m *Memory[K, V]) Insert(_ context.Context, value V) (K, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var key K
	if err := m.hook("insert"); err != nil {
		return key, err
	}
	ik, ok := any(&key).(*int64)
	if !ok {
		return key, ErrKeyRequired
	}
	m.nextID++
	*ik = m.nextID
	if m.setKey != nil {
		m.setKey(&value, m.nextID)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return key, err
	}
	m.items[key] = data
	m.writes++
	return key, nil
}

func (m *Memory[K, V]) InsertWithKey(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("insert"); err != nil {
		return err
	}
	if _, exists := m.items[key]; exists {
		return ErrDuplicateKey
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = data
	m.writes++
	return nil
}

func (m *Memory[K, V]) Update(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("update"); err != nil {
		return err
	}
	if _, exists := m.items[key]; !exists {
		return ErrNotFound
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.items[key] = data
	m.writes++
	return nil
}

func (m *Memory[K, V]) Delete(_ context.Context, key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hook("delete"); err != nil {
		return err
	}
	if _, exists := m.items[key]; !exists {
		return ErrNotFound
	}
	delete(m.items, key)
	m.writes++
	return nil
}

func (m *Memory[K, V]) Select(_ context.Context, pred func(V) bool) ([]V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []V
	for _, data := range m.items {
		var value V
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, err
		}
		if pred == nil || pred(value) {
			out = append(out, value)
		}
	}
	return out, nil
}
