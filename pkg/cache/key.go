package cache

import (
	"net/http"
	"net/url"
	"strings"
)

// keyPrefix namespaces pattern entries in shared backends (Redis, LevelDB).
const keyPrefix = "pattern"

// CacheKey represents the identity of a cached upstream response.
type CacheKey struct {
	// Method is the request method the entry answers. Always GET for
	// keys built with NewCacheKey.
	Method string

	// URL is the absolute target URL (e.g. "https://www.braceletbook.com/media/patterns/123/pattern.svg")
	URL string
}

// NewCacheKey builds the key for a target URL. The method is forced to GET so
// that the key does not depend on how the client framed the original request.
func NewCacheKey(target *url.URL) CacheKey {
	return CacheKey{
		Method: http.MethodGet,
		URL:    target.String(),
	}
}

// String generates a deterministic cache key string.
// Format: pattern:METHOD:url
//
// Example:
//
//	pattern:GET:https://www.braceletbook.com/media/patterns/123/pattern.svg
func (k CacheKey) String() string {
	method := strings.ToUpper(k.Method)
	if method == "" {
		method = http.MethodGet
	}
	return strings.Join([]string{keyPrefix, method, k.URL}, ":")
}
