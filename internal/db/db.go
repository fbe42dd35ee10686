package db

import (
	"context"
	"time"
)

// Store is the database facade every backend implements.
// Consumers depend on the narrow sub-interfaces.
type Store interface {
	Pinger
	KVStore
	Counter
	Scanner
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore provides simple key-value operations. Values are opaque bytes;
// repositories store JSON.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Counter provides integer counters with expiry.
type Counter interface {
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Scanner enumerates and bulk-reads keys under a prefix.
type Scanner interface {
	// Scan returns every key starting with prefix, in no particular order.
	Scan(ctx context.Context, prefix string) ([]string, error)
	// MGet returns values aligned with keys; missing keys yield nil entries.
	MGet(ctx context.Context, keys []string) ([][]byte, error)
}
