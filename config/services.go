package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeEngine runs the batch-processing engine.
	ServiceModeEngine ServiceMode = "engine"
	// ServiceModeReaper runs the job reaper for cleanup.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeEngine,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeEngine, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, engine, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// EngineConfig contains batch-processing engine configuration.
type EngineConfig struct {
	// Workers is the number of worker goroutines in the pool.
	Workers int `env:"ENGINE_WORKERS" envDefault:"4"`

	// ChunkSize is the number of scope items processed per chunk.
	ChunkSize int `env:"ENGINE_CHUNK_SIZE" envDefault:"100"`

	// Lease is the duration a claimed job is held before it is considered
	// orphaned; refreshed on every progress write.
	Lease time.Duration `env:"ENGINE_JOB_LEASE" envDefault:"30s"`

	// PollInterval is the notification fallback poll cadence. Retry-delayed
	// jobs become claimable without a fresh notification, so workers must
	// wake periodically.
	PollInterval time.Duration `env:"ENGINE_POLL_INTERVAL" envDefault:"5s"`

	// OwnerActiveCap is the per-owner running-job cap enforced at claim
	// time. Zero means unlimited.
	OwnerActiveCap int `env:"ENGINE_OWNER_ACTIVE_CAP" envDefault:"0"`

	// ChunkRetries is the number of attempts for a chunk hitting transient
	// errors before its items are marked errored.
	ChunkRetries int `env:"ENGINE_CHUNK_RETRIES" envDefault:"3"`

	// RetryDelay is how long a fatally-failed job waits before its
	// automatic requeue becomes claimable.
	RetryDelay time.Duration `env:"ENGINE_RETRY_DELAY" envDefault:"30s"`

	// AutoStart launches the processor immediately on boot. When false the
	// engine waits for an operator start via the API.
	AutoStart bool `env:"ENGINE_AUTO_START" envDefault:"true"`
}

// Sanitize applies guardrails to engine configuration values.
func (e *EngineConfig) Sanitize() {
	if e.Workers < 1 {
		e.Workers = 1
	}
	if e.ChunkSize < 1 {
		e.ChunkSize = 1
	}
	if e.Lease < 5*time.Second {
		e.Lease = 5 * time.Second
	}
	if e.PollInterval < time.Second {
		e.PollInterval = time.Second
	}
	if e.OwnerActiveCap < 0 {
		e.OwnerActiveCap = 0
	}
	if e.ChunkRetries < 1 {
		e.ChunkRetries = 1
	}
	if e.RetryDelay < time.Second {
		e.RetryDelay = time.Second
	}
}

// RetryDelaySeconds returns the retry delay as whole seconds.
func (e *EngineConfig) RetryDelaySeconds() int {
	return int(e.RetryDelay / time.Second)
}

// HealthConfig contains queue health derivation and stats caching configuration.
type HealthConfig struct {
	// DegradedAfter is the oldest-queued-wait threshold for the degraded level.
	DegradedAfter time.Duration `env:"HEALTH_DEGRADED_AFTER" envDefault:"1m"`

	// BackloggedAfter is the oldest-queued-wait threshold for the backlogged level.
	BackloggedAfter time.Duration `env:"HEALTH_BACKLOGGED_AFTER" envDefault:"5m"`

	// StatsCacheTTL bounds how stale a cached stats snapshot may be.
	StatsCacheTTL time.Duration `env:"HEALTH_STATS_CACHE_TTL" envDefault:"5s"`

	// StatsWindow is the rolling window for throughput aggregation.
	StatsWindow time.Duration `env:"HEALTH_STATS_WINDOW" envDefault:"5m"`
}

// Sanitize applies guardrails to health configuration values.
func (h *HealthConfig) Sanitize() {
	if h.DegradedAfter <= 0 {
		h.DegradedAfter = time.Minute
	}
	if h.BackloggedAfter <= h.DegradedAfter {
		h.BackloggedAfter = 5 * h.DegradedAfter
	}
	if h.StatsCacheTTL <= 0 {
		h.StatsCacheTTL = 5 * time.Second
	}
	if h.StatsWindow < time.Minute {
		h.StatsWindow = time.Minute
	}
}

// ReaperConfig contains job reaper service configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// QueuedMaxAge is the maximum age for queued jobs before they are marked as failed.
	// Jobs stuck in queued status longer than this will be failed.
	QueuedMaxAge time.Duration `env:"REAPER_QUEUED_MAX_AGE" envDefault:"24h"`

	// CompletedMaxAge is the maximum age for completed jobs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"168h"` // 7 days

	// FailedMaxAge is the maximum age for failed jobs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"168h"` // 7 days

	// CancelledMaxAge is the maximum age for cancelled jobs before deletion.
	CancelledMaxAge time.Duration `env:"REAPER_CANCELLED_MAX_AGE" envDefault:"168h"` // 7 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.QueuedMaxAge < 5*time.Minute {
		r.QueuedMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.CancelledMaxAge < 1*time.Hour {
		r.CancelledMaxAge = 1 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}
