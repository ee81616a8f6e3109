package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

//go:generate mockgen -source=store.go -destination=../../internal/mocks/mock_store.go -package=mocks

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a response cache addressed by request identity.
//
// Implementations must be safe for concurrent use. Concurrent Puts for the
// same key are last-write-wins.
type Store interface {
	// Match returns the fresh entry stored under key.
	// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
	Match(ctx context.Context, key CacheKey) (*CacheEntry, error)

	// Put stores entry under key until entry.Expires.
	// Entries that are already expired are silently dropped.
	Put(ctx context.Context, key CacheKey, entry *CacheEntry) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}

// Backend names accepted by configuration.
const (
	BackendRedis   = "redis"
	BackendLevelDB = "leveldb"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

func encodeEntry(entry *CacheEntry) ([]byte, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("marshal cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (*CacheEntry, error) {
	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &entry, nil
}
