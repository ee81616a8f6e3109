package proxy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTaskTimeout bounds a detached task when none is configured.
const DefaultTaskTimeout = 10 * time.Second

// TaskGroup runs work after the response has been handed back to the client.
//
// Tasks get a context that keeps the request's values but is never cancelled
// by the client going away; only the per-task timeout ends it. Failures are
// logged and counted, never returned. The server calls Wait during shutdown
// so that pending tasks can finish within the grace period.
type TaskGroup struct {
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
}

// NewTaskGroup creates a task group. A non-positive timeout means
// DefaultTaskTimeout.
func NewTaskGroup(timeout time.Duration, logger zerolog.Logger) *TaskGroup {
	if timeout <= 0 {
		timeout = DefaultTaskTimeout
	}
	return &TaskGroup{
		timeout: timeout,
		logger:  logger,
	}
}

// Go starts fn on its own goroutine and returns immediately.
func (g *TaskGroup) Go(parent context.Context, name string, fn func(ctx context.Context) error) {
	g.wg.Add(1)
	detachedTasksPending.Inc()

	go func() {
		defer g.wg.Done()
		defer detachedTasksPending.Dec()
		defer func() {
			if rec := recover(); rec != nil {
				detachedTasksTotal.WithLabelValues(name, "panic").Inc()
				g.logger.Error().
					Str("task", name).
					Str("panic", fmt.Sprint(rec)).
					Msg("Detached task panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), g.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			detachedTasksTotal.WithLabelValues(name, "error").Inc()
			g.logger.Warn().Err(err).Str("task", name).Msg("Detached task failed")
			return
		}
		detachedTasksTotal.WithLabelValues(name, "ok").Inc()
	}()
}

// Wait blocks until every started task has finished or ctx is done.
func (g *TaskGroup) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
