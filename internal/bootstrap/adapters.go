package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/engine"
	"github.com/openscale/jobforge/internal/observability/statsd"
	"github.com/openscale/jobforge/internal/service"
)

// engineStopTimeout bounds how long a drained stop may take after the
// service context is cancelled. The pool finishes at most one chunk per
// worker in that window.
const engineStopTimeout = 30 * time.Second

// EngineRuntimeConfig contains configuration for the engine service mode.
type EngineRuntimeConfig struct {
	Controller *engine.Controller
	AutoStart  bool
	Logger     *slog.Logger
}

// RunEngine drives the processor controller for the engine service mode.
// With AutoStart the pool launches immediately; otherwise the controller
// idles until an operator start arrives over the API. Blocks until ctx is
// cancelled, then stops the pool and waits for workers to drain.
func RunEngine(ctx context.Context, cfg EngineRuntimeConfig) error {
	if cfg.Controller == nil {
		return errors.New("engine controller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.AutoStart {
		if err := cfg.Controller.Start(ctx); err != nil {
			return fmt.Errorf("start processor: %w", err)
		}
		logger.InfoContext(ctx, "processor auto-started")
	} else {
		logger.InfoContext(ctx, "processor idle, waiting for operator start")
	}

	<-ctx.Done()

	// The service context is already cancelled; stop on a fresh one so
	// workers get their drain window.
	stopCtx, cancel := context.WithTimeout(context.Background(), engineStopTimeout)
	defer cancel()

	if err := cfg.Controller.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop processor: %w", err)
	}
	return nil
}

// ReaperRuntimeConfig contains configuration for the reaper service mode.
type ReaperRuntimeConfig struct {
	Repo    core.ReaperRepository
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the job reaper loop.
func RunReaper(ctx context.Context, cfg ReaperRuntimeConfig) error {
	reaper, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    cfg.Repo,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper service: %w", err)
	}

	return reaper.Run(ctx)
}
