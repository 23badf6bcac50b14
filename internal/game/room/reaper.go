package room

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reaper periodically destroys rooms that have been empty longer than the
// idle threshold. It is the only path that deletes a room; join and leave
// only mark rooms idle. Implements the server lifecycle Service interface.
type Reaper struct {
	registry  *Registry
	threshold time.Duration
	interval  time.Duration
	logger    *zap.Logger
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewReaper creates a Reaper sweeping the given registry.
//
// Precondition: registry and logger must be non-nil; threshold and interval
// must be positive.
func NewReaper(registry *Registry, threshold, interval time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		registry:  registry,
		threshold: threshold,
		interval:  interval,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}
}

// Start runs the sweep loop. It blocks until Stop is called.
//
// Postcondition: Always returns nil; sweep failures are logged, never fatal.
func (rp *Reaper) Start() error {
	rp.wg.Add(1)
	defer rp.wg.Done()

	ticker := time.NewTicker(rp.interval)
	defer ticker.Stop()

	rp.logger.Info("reaper started",
		zap.Duration("threshold", rp.threshold),
		zap.Duration("interval", rp.interval),
	)

	for {
		select {
		case <-ticker.C:
			rp.Sweep()
		case <-rp.stopCh:
			return nil
		}
	}
}

// Stop terminates the sweep loop. Safe to call more than once.
func (rp *Reaper) Stop() {
	rp.stopOnce.Do(func() {
		close(rp.stopCh)
	})
	rp.wg.Wait()
}

// Sweep runs one reap pass. Exported so tests and diagnostics can force a
// sweep without waiting for the ticker.
func (rp *Reaper) Sweep() {
	defer func() {
		if rec := recover(); rec != nil {
			rp.logger.Error("panic in reaper sweep", zap.Any("panic", rec))
		}
	}()

	if n := rp.registry.ReapIdle(rp.threshold); n > 0 {
		rp.logger.Info("reap sweep finished", zap.Int("reaped", n))
	}
}
