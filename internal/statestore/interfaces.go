// Package statestore provides the durable key/value storage backing the
// sync engine's pending-change buffers, change token, and setup flags.
//
// The StateStore contract is deliberately narrow: atomic single-key
// get/set/delete. Callers that need multi-key consistency serialize
// their own access (the engine mutates state only from its work queue).
package statestore

import "context"

//go:generate mockgen -source=interfaces.go -destination=../mock/statestore_mock.go -package=mock

// StateStore is durable key/value storage with atomic single-key
// operations. A Set observed by a later Get returns exactly the stored
// bytes; a crash between Set calls never exposes a partially written
// value.
type StateStore interface {
	// Get returns the value stored under key. The second return value
	// reports whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
