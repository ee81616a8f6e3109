package cache

import (
	"bytes"
	"net/http"
	"time"
)

// CacheEntry represents a cached upstream response.
type CacheEntry struct {
	// Data is the response body
	Data []byte `json:"data"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// Headers are the response headers as they were returned to the client
	Headers http.Header `json:"headers"`

	// Expires is when the cache entry becomes stale (from Cache-Control max-age)
	Expires time.Time `json:"expires"`

	// CachedAt is when we cached this response
	CachedAt time.Time `json:"cached_at"`
}

// IsExpired returns true if the cache entry has expired.
func (e *CacheEntry) IsExpired() bool {
	return time.Now().After(e.Expires)
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Clone returns a deep copy so callers can mutate headers or body without
// touching the stored value.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Data = bytes.Clone(e.Data)
	clone.Headers = e.Headers.Clone()
	return &clone
}
