package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/data"
	"github.com/openscale/jobforge/internal/domain/job"
	"github.com/openscale/jobforge/internal/engine"
	"github.com/openscale/jobforge/internal/observability/notify/pagerduty"
	"github.com/openscale/jobforge/internal/observability/notify/slack"
	"github.com/openscale/jobforge/internal/observability/statsd"
	"github.com/openscale/jobforge/internal/service"
	"github.com/openscale/jobforge/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Queue         *service.QueueService
	Reporter      *service.ReporterService
	Registry      *engine.Registry
	Controller    *engine.Controller
	Notifier      job.Notifier
	JobRepo       *data.JobRepo
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger

	// Handlers are registered into the engine registry at startup. The
	// queue service rejects submissions for any type not present here.
	Handlers map[string]engine.Handler
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB        *sql.DB
	Redis     redis.UniversalClient
	JobRepo   *data.JobRepo
	CacheRepo *data.RedisCacheRepo
}

// buildObservability configures metrics and notification adapters.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "jobforge",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	failureNotifier := buildFailureNotifier(obsLogger, cfg.Notifications)

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: failureNotifier,
		NotifierConfig:  cfg.Notifications,
	}
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, cfg *config.AppConfig, logger *slog.Logger) *serviceRepositories {
	repoCfg := data.RepoConfig{Logger: logger}
	if cfg != nil {
		repoCfg.RetryDelaySeconds = cfg.Engine.RetryDelaySeconds()
	}

	repos := &serviceRepositories{
		DB:      db,
		Redis:   redisClient,
		JobRepo: data.NewJobRepo(db, repoCfg),
	}
	if redisClient != nil {
		repos.CacheRepo = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

// buildRegistry constructs the handler registry and registers the provided
// handlers. Registration conflicts are configuration mistakes and fail boot.
func buildRegistry(handlers map[string]engine.Handler) (*engine.Registry, error) {
	registry := engine.NewRegistry()
	for jobType, handler := range handlers {
		if err := registry.Register(jobType, handler); err != nil {
			return nil, fmt.Errorf("register handler %q: %w", jobType, err)
		}
	}
	return registry, nil
}

// engineRuntime groups the worker pool pieces wired during boot.
type engineRuntime struct {
	registry   *engine.Registry
	notifier   *job.DefaultNotifier
	controller *engine.Controller
}

func buildEngineRuntime(deps *ServiceDeps, repos *serviceRepositories, obs ObservabilityContainer, logger *slog.Logger) (*engineRuntime, error) {
	registry, err := buildRegistry(deps.Handlers)
	if err != nil {
		return nil, err
	}

	notifier, err := job.NewNotifier(job.NotifierOptions{Waiter: repos.JobRepo})
	if err != nil {
		return nil, fmt.Errorf("build notifier: %w", err)
	}

	engineCfg := config.EngineConfig{}
	if deps.Config != nil {
		engineCfg = deps.Config.Engine
	}

	pool, err := engine.NewPool(engine.PoolOptions{
		Store:           repos.JobRepo,
		Registry:        registry,
		Notifier:        notifier,
		Logger:          logger.With("component", "engine_pool"),
		Workers:         engineCfg.Workers,
		ChunkSize:       engineCfg.ChunkSize,
		Lease:           engineCfg.Lease,
		OwnerActiveCap:  engineCfg.OwnerActiveCap,
		ChunkRetries:    engineCfg.ChunkRetries,
		PollInterval:    engineCfg.PollInterval,
		Metrics:         obs.MetricsSink,
		FailureNotifier: obs.FailureNotifier,
	})
	if err != nil {
		return nil, fmt.Errorf("build worker pool: %w", err)
	}

	controller, err := engine.NewController(engine.ControllerOptions{
		Pool:   pool,
		Store:  repos.JobRepo,
		Logger: logger.With("component", "engine_controller"),
	})
	if err != nil {
		return nil, fmt.Errorf("build controller: %w", err)
	}

	return &engineRuntime{
		registry:   registry,
		notifier:   notifier,
		controller: controller,
	}, nil
}

// NewServices wires repositories, the engine runtime and the application
// services into a container usable by every service mode.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil {
		return ServiceContainer{}, errors.New("service deps are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient, deps.Config, logger)

	runtime, err := buildEngineRuntime(deps, repos, observability, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	queueSvc, err := service.NewQueueService(service.QueueServiceOptions{
		Store:   repos.JobRepo,
		Catalog: runtime.registry,
		Logger:  logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build queue service: %w", err)
	}

	var healthCfg config.HealthConfig
	if deps.Config != nil {
		healthCfg = deps.Config.Health
	}
	reporter, err := service.NewReporterService(service.ReporterServiceOptions{
		Store:  repos.JobRepo,
		Cache:  cacheOrNil(repos),
		Config: healthCfg,
		Logger: logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build reporter service: %w", err)
	}

	return ServiceContainer{
		Queue:         queueSvc,
		Reporter:      reporter,
		Registry:      runtime.registry,
		Controller:    runtime.controller,
		Notifier:      runtime.notifier,
		JobRepo:       repos.JobRepo,
		Observability: observability,
	}, nil
}

// cacheOrNil returns the cache port, avoiding a typed-nil interface value
// that would defeat the reporter's nil check.
//
//nolint:ireturn // the port is consumed through core.CacheRepository.
func cacheOrNil(repos *serviceRepositories) core.CacheRepository {
	if repos == nil || repos.CacheRepo == nil {
		return nil
	}
	return repos.CacheRepo
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				if deps.logger != nil {
					deps.logger.WarnContext(
						ctx,
						"dropping background service error",
						"service",
						descriptor.name,
						"error",
						errMsg,
					)
				} else {
					slog.Default().WarnContext(ctx, "dropping background service error", "service", descriptor.name, "error", errMsg)
				}
			}
		}
	}()

	if deps.logger != nil {
		deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	} else {
		slog.Default().InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	}

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newEngineBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeEngine,
		name: "engine",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			autoStart := true
			if deps.cfg.Config != nil {
				autoStart = deps.cfg.Config.Engine.AutoStart
			}
			return RunEngine(ctx, EngineRuntimeConfig{
				Controller: deps.cfg.Services.Controller,
				AutoStart:  autoStart,
				Logger:     deps.logger,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperRuntimeConfig{
				Repo:    deps.cfg.Services.JobRepo,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newEngineBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:         serviceCtx,
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		notifier:    cfg.Services.Notifier,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeEngine,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx         context.Context
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	notifier    job.Notifier
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Stop submission wakeups first so idle workers fall back to their
	// poll timers instead of blocking on a dead listener.
	if cfg.notifier != nil {
		cfg.notifier.StopAll()
	}

	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		// Create a timeout context for HTTP shutdown
		shutdownCtx, cancel := context.WithTimeout(cfg.ctx, shutdownWaitTimeout)
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
