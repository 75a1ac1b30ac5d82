package kvstore

import (
	"context"
	"time"
)

// Store is the small key-value surface the conversation memory tiers and the
// documents-available flag are built on. A ttl of zero means no expiry.
// Implementations must be safe for concurrent use; last write wins.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
