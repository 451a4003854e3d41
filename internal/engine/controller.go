package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
)

// ControllerOptions configures the processor controller.
type ControllerOptions struct {
	Pool   *Pool
	Store  core.JobStore
	Logger *slog.Logger
}

// Controller exposes operator start/stop over a Pool. Start and Stop are
// idempotent; the pool runs on a context detached from the caller so an
// HTTP-triggered start outlives its request.
type Controller struct {
	pool   *Pool
	store  core.JobStore
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	since   time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController constructs a processor controller.
func NewController(opts ControllerOptions) (*Controller, error) {
	if opts.Pool == nil {
		return nil, errors.New("pool is required")
	}
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "engine_controller")
	}
	return &Controller{
		pool:   opts.Pool,
		store:  opts.Store,
		logger: logger,
	}, nil
}

// Start reconciles orphaned running jobs back to queued and launches the
// pool. Calling Start on a running controller is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	requeued, err := c.store.RequeueAllRunning(ctx)
	if err != nil {
		return err
	}
	if requeued > 0 {
		c.logger.InfoContext(ctx, "requeued orphaned running jobs", "count", requeued)
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.running = true
	c.since = time.Now()

	go func() {
		defer close(done)
		defer cancel()
		if err := c.pool.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("worker pool exited", "error", err)
		}
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	return nil
}

// Stop cancels the pool and waits for workers to finish their current
// chunks, or for ctx to end. Calling Stop on a stopped controller is a
// no-op.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports whether the processor is running and since when.
func (c *Controller) Status() model.ProcessorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := model.ProcessorStatus{Running: c.running}
	if c.running {
		status.ActiveWorkers = c.pool.Workers()
		since := c.since
		status.Since = &since
	}
	return status
}
