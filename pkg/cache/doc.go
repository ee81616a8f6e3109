// Package cache provides the pattern response cache.
//
// Entries are complete HTTP responses (status, headers, body) addressed by a
// CacheKey built from the target URL with the method forced to GET, so the
// same pattern is shared no matter how a client framed its request.
//
// # Backends
//
// All backends implement Store:
//
//   - RedisStore   - shared cache, Redis TTL mirrors the entry TTL (default)
//   - LevelDBStore - on-disk, single process
//   - SQLiteStore  - on-disk, single process, pure Go driver
//   - MemoryStore  - tests and local development
//
// # Basic Usage
//
//	store := cache.NewRedisStore(redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	}))
//
//	key := cache.NewCacheKey(target)
//
//	entry, err := store.Match(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// Cache miss - fetch from upstream
//	}
//
// # HTTP Response Caching
//
//	// Convert HTTP response to cache entry
//	entry, err := cache.ResponseToEntry(resp)
//	if err != nil {
//		return err
//	}
//
//	// Store in cache
//	if err := store.Put(ctx, key, entry); err != nil {
//		return err
//	}
//
// # Freshness
//
// ResponseToEntry takes the lifetime from Cache-Control (s-maxage, then
// max-age), then Expires, then DefaultTTL. no-store and private responses get
// a zero lifetime and every backend drops them on Put.
//
// # Metrics
//
//   - pattern_proxy_cache_hits_total{backend}
//   - pattern_proxy_cache_misses_total{backend}
//   - pattern_proxy_cache_stored_bytes_total{backend}
//   - pattern_proxy_cache_errors_total{backend,operation}
package cache
