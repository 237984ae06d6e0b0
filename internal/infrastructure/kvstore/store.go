// Package kvstore is the key-value collaborator used to share health and
// circuit snapshots when the engine runs in multiple instances.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for missing or expired keys.
var ErrNotFound = errors.New("key not found")

// Store is the cross-process key-value contract.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
}
