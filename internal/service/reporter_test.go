package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/domain/model"
	"github.com/openscale/jobforge/internal/mocks"
)

func reporterHealthConfig() config.HealthConfig {
	return config.HealthConfig{
		DegradedAfter:   time.Minute,
		BackloggedAfter: 5 * time.Minute,
		StatsCacheTTL:   5 * time.Second,
		StatsWindow:     5 * time.Minute,
	}
}

func queuedStats(oldestWait time.Duration) *model.QueueStats {
	return &model.QueueStats{
		CountsByStatus: map[model.JobStatus]int{model.JobStatusQueued: 3},
		AvgWaitMs:      oldestWait.Milliseconds() / 2,
		OldestWaitMs:   oldestWait.Milliseconds(),
	}
}

func TestNewReporterServiceRequiresStore(t *testing.T) {
	_, err := NewReporterService(ReporterServiceOptions{Config: reporterHealthConfig()})
	assert.ErrorContains(t, err, "JobStore is required")
}

func TestReporterServiceStatsWithoutCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	svc, err := NewReporterService(ReporterServiceOptions{Store: store, Config: reporterHealthConfig()})
	require.NoError(t, err)

	expected := queuedStats(30 * time.Second)
	store.EXPECT().Stats(gomock.Any(), 5*time.Minute).Return(expected, nil)

	stats, err := svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, expected, stats)
}

func TestReporterServiceStatsCacheHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewReporterService(ReporterServiceOptions{
		Store:  store,
		Cache:  cache,
		Config: reporterHealthConfig(),
	})
	require.NoError(t, err)

	snapshot := queuedStats(10 * time.Second)
	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	cache.EXPECT().Get(gomock.Any(), "queue:stats").Return(raw, nil)

	stats, err := svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot.OldestWaitMs, stats.OldestWaitMs)
	assert.Equal(t, 3, stats.CountsByStatus[model.JobStatusQueued])
}

func TestReporterServiceStatsCacheMissPopulates(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewReporterService(ReporterServiceOptions{
		Store:  store,
		Cache:  cache,
		Config: reporterHealthConfig(),
	})
	require.NoError(t, err)

	snapshot := queuedStats(10 * time.Second)
	cache.EXPECT().Get(gomock.Any(), "queue:stats").Return(nil, nil)
	store.EXPECT().Stats(gomock.Any(), 5*time.Minute).Return(snapshot, nil)
	cache.EXPECT().Set(gomock.Any(), "queue:stats", gomock.Any(), 5*time.Second).Return(nil)

	stats, err := svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot, stats)
}

func TestReporterServiceCacheFailuresDegradeToQuery(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockJobStore(ctrl)
	cache := mocks.NewMockCacheRepository(ctrl)
	svc, err := NewReporterService(ReporterServiceOptions{
		Store:  store,
		Cache:  cache,
		Config: reporterHealthConfig(),
	})
	require.NoError(t, err)

	snapshot := queuedStats(10 * time.Second)
	cache.EXPECT().Get(gomock.Any(), "queue:stats").Return(nil, errors.New("redis down"))
	store.EXPECT().Stats(gomock.Any(), 5*time.Minute).Return(snapshot, nil)
	cache.EXPECT().Set(gomock.Any(), "queue:stats", gomock.Any(), 5*time.Second).
		Return(errors.New("redis down"))

	stats, err := svc.QueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot, stats)
}

func TestReporterServiceQueueHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats *model.QueueStats
		want  model.HealthLevel
	}{
		{
			name:  "empty queue is healthy",
			stats: &model.QueueStats{CountsByStatus: map[model.JobStatus]int{}},
			want:  model.HealthLevelHealthy,
		},
		{
			name:  "short waits are healthy",
			stats: queuedStats(10 * time.Second),
			want:  model.HealthLevelHealthy,
		},
		{
			name:  "old waits degrade",
			stats: queuedStats(2 * time.Minute),
			want:  model.HealthLevelDegraded,
		},
		{
			name:  "very old waits are backlogged",
			stats: queuedStats(10 * time.Minute),
			want:  model.HealthLevelBacklogged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := mocks.NewMockJobStore(ctrl)
			svc, err := NewReporterService(ReporterServiceOptions{Store: store, Config: reporterHealthConfig()})
			require.NoError(t, err)

			store.EXPECT().Stats(gomock.Any(), gomock.Any()).Return(tt.stats, nil)

			health, err := svc.QueueHealth(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, health.Level)
		})
	}
}
