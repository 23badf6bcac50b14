// Package server coordinates the session server's long-running tasks and
// their ordered teardown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// stopGrace bounds how long Wait waits for tasks to exit after the shutdown
// hooks have run.
const stopGrace = 10 * time.Second

// Runner owns the server's blocking tasks (the HTTP listener, the room
// reaper) and the shutdown hooks that release their resources. Tasks run
// concurrently; hooks run in reverse registration order, so the listener
// stops accepting and live connections drain before the components under
// them go away.
type Runner struct {
	logger *zap.Logger

	mu    sync.Mutex
	tasks int
	hooks []hook

	wg    sync.WaitGroup
	errCh chan error
}

type hook struct {
	name string
	fn   func()
}

// NewRunner creates a Runner.
//
// Precondition: logger must be non-nil.
func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger: logger,
		errCh:  make(chan error, 1),
	}
}

// Go launches a named blocking task. A non-nil return triggers shutdown; a
// nil return is a normal exit (a stopped listener) and does not.
//
// Precondition: name must be non-empty; run must be non-nil.
func (r *Runner) Go(name string, run func() error) {
	r.mu.Lock()
	r.tasks++
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		started := time.Now()
		r.logger.Info("task started", zap.String("task", name))
		if err := run(); err != nil {
			r.logger.Error("task failed",
				zap.String("task", name),
				zap.Error(err),
				zap.Duration("uptime", time.Since(started)),
			)
			// First failure wins; later ones are already logged above.
			select {
			case r.errCh <- fmt.Errorf("task %s: %w", name, err):
			default:
			}
			return
		}
		r.logger.Info("task exited",
			zap.String("task", name),
			zap.Duration("uptime", time.Since(started)),
		)
	}()
}

// OnShutdown registers a named teardown hook. Hooks run exactly once, in
// reverse registration order, when Wait begins shutting down.
//
// Precondition: name must be non-empty; fn must be non-nil.
func (r *Runner) OnShutdown(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook{name: name, fn: fn})
}

// Wait blocks until SIGINT or SIGTERM, context cancellation, or the first
// task failure, then runs the shutdown hooks and waits up to the grace
// period for every task to exit. It returns the failure that triggered
// shutdown, or nil for a signal- or context-driven stop.
func (r *Runner) Wait(ctx context.Context) error {
	started := time.Now()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var failure error
	select {
	case sig := <-sigCh:
		r.logger.Info("received signal, shutting down",
			zap.String("signal", sig.String()),
		)
	case failure = <-r.errCh:
		r.logger.Error("task error, shutting down", zap.Error(failure))
	case <-ctx.Done():
		r.logger.Info("context cancelled, shutting down")
	}

	r.runHooks()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Info("shutdown complete",
			zap.Duration("total_uptime", time.Since(started)),
		)
	case <-time.After(stopGrace):
		r.logger.Warn("tasks still running after grace period",
			zap.Duration("grace", stopGrace),
		)
	}
	return failure
}

func (r *Runner) runHooks() {
	r.mu.Lock()
	hooks := make([]hook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	start := time.Now()
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		hookStart := time.Now()
		h.fn()
		r.logger.Info("shutdown hook ran",
			zap.String("hook", h.name),
			zap.Duration("elapsed", time.Since(hookStart)),
		)
	}
	r.logger.Info("all shutdown hooks ran",
		zap.Int("count", len(hooks)),
		zap.Duration("elapsed", time.Since(start)),
	)
}
