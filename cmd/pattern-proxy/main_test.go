package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/pattern-proxy/internal/config"
	"github.com/Sternrassler/pattern-proxy/internal/testutil"
	"github.com/Sternrassler/pattern-proxy/pkg/cache"
	"github.com/Sternrassler/pattern-proxy/pkg/proxy"
)

const patternURL = "https://www.braceletbook.com/media/patterns/4242/pattern.svg"

func setupTestRedis(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := redisC.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	return "redis://" + host + ":" + port.Port() + "/0"
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Cache.Backend = cache.BackendMemory
	cfg.Cache.WriteTimeout = time.Second
	cfg.Server.ShutdownGrace = 2 * time.Second
	return cfg
}

func proxyURL(base string) string {
	return base + proxy.Path + "?" + proxy.TargetParam + "=" + url.QueryEscape(patternURL)
}

func get(t *testing.T, rawURL string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(rawURL)
	if err != nil {
		t.Fatalf("GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func waitTasks(t *testing.T, a *app) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tasks.Wait(ctx); err != nil {
		t.Fatalf("pending cache writes: %v", err)
	}
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.CacheConfig
		wantErr bool
	}{
		{"memory", config.CacheConfig{Backend: cache.BackendMemory}, false},
		{"leveldb", config.CacheConfig{Backend: cache.BackendLevelDB, LevelDBPath: filepath.Join(dir, "ldb")}, false},
		{"sqlite", config.CacheConfig{Backend: cache.BackendSQLite, SQLitePath: filepath.Join(dir, "cache.db")}, false},
		{"unknown", config.CacheConfig{Backend: "memcached"}, true},
		{"bad redis url", config.CacheConfig{Backend: cache.BackendRedis, RedisURL: "http://nope"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(context.Background(), tt.cfg)
			if tt.wantErr {
				if err == nil {
					store.Close()
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("openStore() error = %v", err)
			}
			defer store.Close()
		})
	}
}

func TestRun_ClosesStoreOnFailure(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	cfg := testConfig()
	cfg.Server.Port = busy.Addr().(*net.TCPAddr).Port
	cfg.Cache.Backend = cache.BackendLevelDB
	cfg.Cache.LevelDBPath = filepath.Join(t.TempDir(), "ldb")

	if err := run(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Fatal("Expected run to fail on a busy port")
	}

	// LevelDB holds a file lock until Close; reopening proves it was released.
	store, err := cache.NewLevelDBStore(cfg.Cache.LevelDBPath)
	if err != nil {
		t.Fatalf("store was left open: %v", err)
	}
	store.Close()
}

func TestServe_ProxiesAndShutsDown(t *testing.T) {
	mock := testutil.NewMockBraceletBook()
	defer mock.Close()

	store := cache.NewMemoryStore()
	a, err := newApp(testConfig(), store, mock.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	resp, body := get(t, proxyURL(base))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, body)
	}
	if got := resp.Header.Get(proxy.HeaderCache); got != proxy.CacheMiss {
		t.Errorf("Expected X-Cache miss, got %q", got)
	}
	if body != testutil.SamplePatternSVG {
		t.Errorf("Unexpected body %q", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve() did not return after cancel")
	}

	// Shutdown waits for the detached write.
	if store.Len() != 1 {
		t.Errorf("Expected 1 cached entry after shutdown, got %d", store.Len())
	}
}

type countingPurger struct {
	calls atomic.Int32
}

func (p *countingPurger) PurgeExpired(context.Context) (int64, error) {
	p.calls.Add(1)
	return 0, nil
}

func TestPurgeLoop(t *testing.T) {
	p := &countingPurger{}
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		purgeLoop(ctx, p, 10*time.Millisecond, zerolog.Nop())
		close(stopped)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-stopped

	if p.calls.Load() < 2 {
		t.Errorf("Expected at least 2 purge runs, got %d", p.calls.Load())
	}
}

func TestRedisEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping container test in short mode")
	}

	cfg := testConfig()
	cfg.Cache.Backend = cache.BackendRedis
	cfg.Cache.RedisURL = setupTestRedis(t)

	store, err := openStore(context.Background(), cfg.Cache)
	if err != nil {
		t.Fatalf("openStore() error = %v", err)
	}
	defer store.Close()

	mock := testutil.NewMockBraceletBook()
	defer mock.Close()

	a, err := newApp(cfg, store, mock.Client(), zerolog.Nop())
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/ready")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected ready, got %d", resp.StatusCode)
	}

	resp, _ = get(t, proxyURL(srv.URL))
	if got := resp.Header.Get(proxy.HeaderCache); got != proxy.CacheMiss {
		t.Fatalf("Expected first request to miss, got %q", got)
	}
	waitTasks(t, a)

	resp, body := get(t, proxyURL(srv.URL))
	if got := resp.Header.Get(proxy.HeaderCache); got != proxy.CacheHit {
		t.Errorf("Expected second request to hit, got %q", got)
	}
	if resp.Header.Get("Content-Type") != proxy.ContentTypeSVG {
		t.Errorf("Unexpected Content-Type %q", resp.Header.Get("Content-Type"))
	}
	if body != testutil.SamplePatternSVG {
		t.Errorf("Unexpected body %q", body)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("Expected 1 upstream request, got %d", mock.RequestCount())
	}
}
