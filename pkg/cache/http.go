package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTTL is the fallback TTL when neither Cache-Control nor Expires is present
	DefaultTTL = 5 * time.Minute
)

// ResponseToEntry converts an HTTP response to a CacheEntry.
// The freshness lifetime is taken from Cache-Control, then Expires.
// The response body is restored after reading.
func ResponseToEntry(resp *http.Response) (*CacheEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	now := time.Now()
	return &CacheEntry{
		Data:       bytes.Clone(body),
		StatusCode: resp.StatusCode,
		Headers:    resp.Header.Clone(),
		Expires:    parseExpires(resp.Header, now),
		CachedAt:   now,
	}, nil
}

// EntryToResponse rebuilds an HTTP response from a cache entry. Body and
// headers are copies; mutating the response never touches the entry.
func EntryToResponse(entry *CacheEntry) *http.Response {
	if entry == nil {
		return nil
	}
	status := entry.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	headers := entry.Headers.Clone()
	if headers == nil {
		headers = http.Header{}
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(entry.Data))),
		ContentLength: int64(len(entry.Data)),
	}
}

// parseExpires computes when a response stops being fresh.
// no-store and private responses expire immediately so they are never stored.
// s-maxage wins over max-age (this is a shared cache), then the Expires header,
// then DefaultTTL.
func parseExpires(headers http.Header, now time.Time) time.Time {
	directives := parseCacheControl(headers.Get("Cache-Control"))
	if _, ok := directives["no-store"]; ok {
		return now
	}
	if _, ok := directives["private"]; ok {
		return now
	}
	for _, name := range []string{"s-maxage", "max-age"} {
		if v, ok := directives[name]; ok {
			if secs, err := strconv.ParseInt(v, 10, 64); err == nil && secs >= 0 {
				return now.Add(time.Duration(secs) * time.Second)
			}
		}
	}

	expiresStr := headers.Get("Expires")
	if expiresStr == "" {
		return now.Add(DefaultTTL)
	}
	expires, err := http.ParseTime(expiresStr)
	if err != nil {
		return now.Add(DefaultTTL)
	}
	if expires.Before(now) {
		// Already expired - use minimal TTL
		return now
	}
	return expires
}

// parseCacheControl splits a Cache-Control value into lowercase directive
// names mapped to their (unquoted) arguments.
func parseCacheControl(value string) map[string]string {
	directives := make(map[string]string)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, arg, _ := strings.Cut(part, "=")
		directives[strings.ToLower(strings.TrimSpace(name))] = strings.Trim(strings.TrimSpace(arg), `"`)
	}
	return directives
}
