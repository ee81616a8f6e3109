package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/pattern-proxy/internal/config"
	"github.com/Sternrassler/pattern-proxy/pkg/cache"
	"github.com/Sternrassler/pattern-proxy/pkg/logging"
	"github.com/Sternrassler/pattern-proxy/pkg/proxy"
	"github.com/Sternrassler/pattern-proxy/pkg/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Log.Level),
		Pretty:  cfg.Log.Pretty,
		Output:  os.Stderr,
		Service: "pattern-proxy",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

// run owns the store for the lifetime of the server, so it is closed on
// every return path before main exits.
func run(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	store, err := openStore(ctx, cfg.Cache)
	if err != nil {
		return fmt.Errorf("open %s cache store: %w", cfg.Cache.Backend, err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close cache store")
		}
	}()
	logger.Info().Str("backend", cfg.Cache.Backend).Msg("Cache store ready")

	a, err := newApp(cfg, store, nil, logger)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	}
	logger.Info().
		Str("addr", ln.Addr().String()).
		Str("user_agent", cfg.Upstream.UserAgent).
		Msg("Starting pattern proxy")

	return a.serve(ctx, ln)
}

// openStore opens the configured backend and checks that it answers.
func openStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	var store cache.Store

	switch cfg.Backend {
	case cache.BackendRedis:
		opts, err := cfg.RedisOptions()
		if err != nil {
			return nil, err
		}
		store = cache.NewRedisStore(redis.NewClient(opts))
	case cache.BackendLevelDB:
		s, err := cache.NewLevelDBStore(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		store = s
	case cache.BackendSQLite:
		s, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		store = s
	case cache.BackendMemory:
		store = cache.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ping %s store: %w", cfg.Backend, err)
	}
	return store, nil
}

// app is the assembled proxy: store, upstream client, task group and router.
type app struct {
	cfg     config.Config
	store   cache.Store
	tasks   *proxy.TaskGroup
	handler http.Handler
	logger  zerolog.Logger
}

// newApp wires the proxy. A nil httpClient keeps the upstream client's own.
func newApp(cfg config.Config, store cache.Store, httpClient *http.Client, logger zerolog.Logger) (*app, error) {
	fetcher, err := upstream.New(upstream.Config{
		UserAgent:    cfg.Upstream.UserAgent,
		Timeout:      cfg.Upstream.Timeout,
		MaxBodyBytes: cfg.Upstream.MaxBodyBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}
	if httpClient != nil {
		fetcher.SetHTTPClient(httpClient)
	}

	tasks := proxy.NewTaskGroup(cfg.Cache.WriteTimeout, logging.NewLogger("tasks"))
	handler := proxy.NewHandler(store, fetcher, tasks)

	return &app{
		cfg:     cfg,
		store:   store,
		tasks:   tasks,
		handler: proxy.NewRouter(handler, store, logger),
		logger:  logger,
	}, nil
}

// serve runs the HTTP server on ln until ctx is cancelled, then shuts down
// and gives pending cache writes the rest of the grace period.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if p, ok := a.store.(expiredPurger); ok && a.cfg.Cache.PurgeInterval > 0 {
		go purgeLoop(ctx, p, a.cfg.Cache.PurgeInterval, a.logger)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Dur("grace", a.cfg.Server.ShutdownGrace).Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := a.tasks.Wait(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("Abandoned pending cache writes")
	}
	return nil
}

// expiredPurger is implemented by stores without native expiry (sqlite).
type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

func purgeLoop(ctx context.Context, p expiredPurger, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to purge expired cache entries")
				continue
			}
			logger.Debug().Int64("removed", n).Msg("Purged expired cache entries")
		}
	}
}
