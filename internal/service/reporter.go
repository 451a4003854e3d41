package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
	"github.com/openscale/jobforge/internal/domain/queue"
)

// statsCacheKey is where the serialized stats snapshot lives in the cache.
const statsCacheKey = "queue:stats"

// ReporterServiceOptions groups dependencies for ReporterService.
type ReporterServiceOptions struct {
	Store  core.JobStore        // Required: job persistence
	Cache  core.CacheRepository // Optional: stats snapshot cache
	Config config.HealthConfig  // Thresholds, cache TTL and stats window
	Logger *slog.Logger         // Optional: structured logger
}

// ReporterService exposes the operator-facing queue status surface: stats
// snapshots and the derived backlog health signal. The aggregate stats query
// touches every row in the jobs table, so snapshots are cached with a short
// TTL; pollers see bounded staleness rather than repeated full scans.
type ReporterService struct {
	store      core.JobStore
	cache      core.CacheRepository
	thresholds queue.HealthThresholds
	cacheTTL   time.Duration
	window     time.Duration
	logger     *slog.Logger
}

// NewReporterService constructs a new ReporterService.
func NewReporterService(opts ReporterServiceOptions) (*ReporterService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	thresholds := queue.HealthThresholds{
		DegradedAfter:   cfg.DegradedAfter,
		BackloggedAfter: cfg.BackloggedAfter,
	}
	thresholds.Sanitize()

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "reporter_service")
	}

	return &ReporterService{
		store:      opts.Store,
		cache:      opts.Cache,
		thresholds: thresholds,
		cacheTTL:   cfg.StatsCacheTTL,
		window:     cfg.StatsWindow,
		logger:     logger,
	}, nil
}

// QueueStats returns a stats snapshot, served from the cache when a fresh
// one exists. Cache failures degrade to a direct query, never to an error.
func (s *ReporterService) QueueStats(ctx context.Context) (*model.QueueStats, error) {
	if cached := s.cachedStats(ctx); cached != nil {
		return cached, nil
	}

	stats, err := s.store.Stats(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}

	s.storeStats(ctx, stats)
	return stats, nil
}

// QueueHealth derives the backlog signal from the current stats snapshot.
func (s *ReporterService) QueueHealth(ctx context.Context) (*model.QueueHealth, error) {
	stats, err := s.QueueStats(ctx)
	if err != nil {
		return nil, err
	}
	health := queue.DeriveHealth(stats, s.thresholds)
	return &health, nil
}

func (s *ReporterService) cachedStats(ctx context.Context) *model.QueueStats {
	if s.cache == nil {
		return nil
	}

	raw, err := s.cache.Get(ctx, statsCacheKey)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "stats cache read failed", "error", err)
		}
		return nil
	}
	if len(raw) == 0 {
		return nil
	}

	var stats model.QueueStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "discarding unreadable cached stats", "error", err)
		}
		return nil
	}
	return &stats
}

func (s *ReporterService) storeStats(ctx context.Context, stats *model.QueueStats) {
	if s.cache == nil || stats == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to serialize stats snapshot", "error", err)
		}
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, raw, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "stats cache write failed", "error", err)
	}
}
