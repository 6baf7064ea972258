// Package store abstracts the mutable shared state of the service
// (challenge records and the used-proofs set) behind a small key-value
// contract. The check-then-set operations the gateway relies on (claiming
// a challenge, recording a proof) map onto GetDel and SetNX so they stay
// atomic regardless of the backing implementation.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get and GetDel when the key is absent
// or its TTL has elapsed.
var ErrKeyNotFound = errors.New("store: key not found")

// Store is the key-value contract. A zero TTL means no expiry.
type Store interface {
	// Get retrieves a value by key.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value under key with the given TTL.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores the value only if the key is absent, reporting whether
	// the write happened. This is the replay-guard primitive.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// GetDel atomically retrieves and removes a value. At most one of any
	// number of concurrent callers observes the value; the rest get
	// ErrKeyNotFound. This is the single-use-claim primitive.
	GetDel(ctx context.Context, key string) (string, error)

	// Delete removes a key. Removing an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
