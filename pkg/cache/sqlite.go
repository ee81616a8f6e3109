package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps entries in a single SQLite table. The driver is pure Go,
// so no cgo toolchain is needed.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore opens the database file at filename and creates the cache
// table if needed. An empty filename opens a private in-memory database.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	memory := filename == ""
	if memory {
		filename = ":memory:"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", filename, err)
	}
	if memory {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			expires INTEGER NOT NULL,
			entry BLOB NOT NULL
		)`,
		"CREATE INDEX IF NOT EXISTS expires_idx ON cache (expires)",
	}
	if !memory {
		stmts = append(stmts, "PRAGMA journal_mode=WAL")
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite cache: %w", err)
		}
	}

	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

// Match retrieves a cache entry by key.
func (s *SQLiteStore) Match(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT entry FROM cache WHERE key = ?", key.String()).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.WithLabelValues(BackendSQLite).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues(BackendSQLite, "match").Inc()
		return nil, fmt.Errorf("sqlite select: %w", err)
	}

	entry, err := decodeEntry(data)
	if err != nil {
		CacheErrors.WithLabelValues(BackendSQLite, "match").Inc()
		_ = s.delete(ctx, key)
		return nil, err
	}

	if entry.IsExpired() {
		if err := s.delete(ctx, key); err != nil {
			CacheErrors.WithLabelValues(BackendSQLite, "delete").Inc()
		}
		CacheMisses.WithLabelValues(BackendSQLite).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(BackendSQLite).Inc()
	return entry, nil
}

// Put stores a cache entry under key, replacing any previous one.
func (s *SQLiteStore) Put(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TTL() <= 0 {
		return nil
	}

	data, err := encodeEntry(entry)
	if err != nil {
		CacheErrors.WithLabelValues(BackendSQLite, "put").Inc()
		return err
	}

	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err = s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cache (key, expires, entry) VALUES (?, ?, ?)",
		key.String(), entry.Expires.Unix(), data)
	if err != nil {
		CacheErrors.WithLabelValues(BackendSQLite, "put").Inc()
		return fmt.Errorf("sqlite insert: %w", err)
	}

	CacheStoredBytes.WithLabelValues(BackendSQLite).Add(float64(len(data)))
	return nil
}

// PurgeExpired deletes every entry whose expiry has passed and returns how
// many rows were removed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	res, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE expires <= ?", time.Now().Unix())
	if err != nil {
		CacheErrors.WithLabelValues(BackendSQLite, "delete").Inc()
		return 0, fmt.Errorf("sqlite purge: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) delete(ctx context.Context, key CacheKey) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.ExecContext(ctx, "DELETE FROM cache WHERE key = ?", key.String())
	return err
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
