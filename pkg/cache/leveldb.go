package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore persists entries in an on-disk LevelDB database.
// Entries are gob-encoded; expiry is checked on read and stale keys are
// deleted lazily.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) the database at path.
// An empty path opens a throwaway in-memory database.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	var (
		db  *leveldb.DB
		err error
	)
	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// Match retrieves a cache entry by key.
func (s *LevelDBStore) Match(_ context.Context, key CacheKey) (*CacheEntry, error) {
	k := []byte(key.String())

	b, err := s.db.Get(k, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			CacheMisses.WithLabelValues(BackendLevelDB).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(BackendLevelDB, "match").Inc()
		return nil, fmt.Errorf("leveldb get: %w", err)
	}

	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&entry); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "match").Inc()
		_ = s.db.Delete(k, nil)
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		if err := s.db.Delete(k, nil); err != nil {
			CacheErrors.WithLabelValues(BackendLevelDB, "delete").Inc()
		}
		CacheMisses.WithLabelValues(BackendLevelDB).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(BackendLevelDB).Inc()
	return &entry, nil
}

// Put stores a cache entry under key.
func (s *LevelDBStore) Put(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "put").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err := s.db.Put([]byte(key.String()), buf.Bytes(), nil); err != nil {
		CacheErrors.WithLabelValues(BackendLevelDB, "put").Inc()
		return fmt.Errorf("leveldb put: %w", err)
	}

	CacheStoredBytes.WithLabelValues(BackendLevelDB).Add(float64(buf.Len()))
	return nil
}

// Ping reports an error once the database has been closed.
func (s *LevelDBStore) Ping(context.Context) error {
	_, err := s.db.GetProperty("leveldb.stats")
	return err
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
