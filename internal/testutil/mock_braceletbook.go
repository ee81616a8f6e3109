// Package testutil provides testing utilities for the pattern proxy.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"time"
)

// SamplePatternSVG is a minimal pattern file body.
const SamplePatternSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`

// MockResponse defines the behavior for a mock upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBraceletBook is a configurable stand-in for braceletbook.com.
//
// Requests carry the real BraceletBook URLs; Client() returns an HTTP client
// whose transport rewrites every request to the mock server, so URL
// validation in the proxy still sees the real host.
type MockBraceletBook struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	requestCount      int
	lastRequestHeader http.Header
	lastRequestMethod string
	lastRequestHost   string
}

// NewMockBraceletBook creates and starts a new mock upstream server.
func NewMockBraceletBook() *MockBraceletBook {
	mock := &MockBraceletBook{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()
		mock.lastRequestMethod = r.Method
		mock.lastRequestHost = r.Host
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}

		// Default handler
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockBraceletBook) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBraceletBook) Close() {
	m.server.Close()
}

// Client returns an HTTP client that sends every request to the mock server,
// keeping the original path and query.
func (m *MockBraceletBook) Client() *http.Client {
	target, _ := url.Parse(m.server.URL)
	return &http.Client{
		Transport: &rewriteTransport{target: target, base: m.server.Client().Transport},
		Timeout:   5 * time.Second,
	}
}

// Reset clears all tracking counters.
func (m *MockBraceletBook) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.lastRequestHeader = nil
	m.lastRequestMethod = ""
	m.lastRequestHost = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBraceletBook) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockBraceletBook) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// RequestCount returns the number of requests made to the server.
func (m *MockBraceletBook) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockBraceletBook) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// LastRequestMethod returns the method of the most recent request.
func (m *MockBraceletBook) LastRequestMethod() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestMethod
}

// LastRequestHost returns the Host header of the most recent request.
func (m *MockBraceletBook) LastRequestHost() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHost
}

// defaultHandler serves a pattern SVG with the content type BraceletBook
// actually uses for media files.
func (m *MockBraceletBook) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "max-age=600")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(SamplePatternSVG))
}

// NewPatternResponse creates a 200 OK response carrying an SVG body.
func NewPatternResponse(svg string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       svg,
		Headers: map[string]string{
			"Content-Type": "text/plain",
			"ETag":         `"pattern-etag"`,
		},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       "<html><body>Not Found</body></html>",
		Headers: map[string]string{
			"Content-Type": "text/html; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 503 Service Unavailable response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusServiceUnavailable,
		Body:       "maintenance",
		Headers: map[string]string{
			"Content-Type": "text/plain",
		},
	}
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Host = req.URL.Host
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	return t.base.RoundTrip(out)
}
