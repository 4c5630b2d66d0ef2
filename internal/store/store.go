// Package store defines the keyed persistence contract the workplace engine
// runs against, plus in-memory and SQLite backends. The engine distinguishes
// two failure classes: ErrNotFound / ErrDuplicateKey mean the operation
// completed but did not succeed; any other error is an infrastructure
// failure the caller should treat as transient.
package store

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrKeyRequired is returned by Insert on backends whose keys are
	// caller-assigned (e.g. username-keyed tables).
	ErrKeyRequired = errors.New("store does not assign keys")
)

// Store is a synchronous keyed store. Select runs the predicate over every
// stored value; backends are free to implement it as a full scan.
type Store[K comparable, V any] interface {
	Get(ctx context.Context, key K) (V, error)
	Has(ctx context.Context, key K) (bool, error)
	// Insert persists a value under a store-assigned key and returns it.
	Insert(ctx context.Context, value V) (K, error)
	// InsertWithKey persists a value under a caller-assigned key.
	InsertWithKey(ctx context.Context, key K, value V) error
	Update(ctx context.Context, key K, value V) error
	Delete(ctx context.Context, key K) error
	Select(ctx context.Context, pred func(V) bool) ([]V, error)
}
