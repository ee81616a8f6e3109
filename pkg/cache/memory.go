package cache

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps entries in process memory. It is meant for tests and
// single-instance development; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*CacheEntry),
	}
}

// Match returns a copy of the entry stored under key.
func (s *MemoryStore) Match(_ context.Context, key CacheKey) (*CacheEntry, error) {
	k := key.String()

	s.mu.RLock()
	entry, ok := s.entries[k]
	s.mu.RUnlock()

	if !ok {
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, ErrCacheMiss
	}
	if entry.IsExpired() {
		s.mu.Lock()
		// a concurrent Put may have replaced it since RUnlock
		if s.entries[k] == entry {
			delete(s.entries, k)
		}
		s.mu.Unlock()
		CacheMisses.WithLabelValues(BackendMemory).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(BackendMemory).Inc()
	return entry.Clone(), nil
}

// Put stores a copy of entry under key.
func (s *MemoryStore) Put(_ context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	s.mu.Lock()
	s.entries[key.String()] = entry.Clone()
	s.mu.Unlock()

	CacheStoredBytes.WithLabelValues(BackendMemory).Add(float64(len(entry.Data)))
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close drops all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.entries = make(map[string]*CacheEntry)
	s.mu.Unlock()
	return nil
}
