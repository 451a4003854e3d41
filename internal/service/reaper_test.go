package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openscale/jobforge/config"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	failStaleQueuedJobsCalled int
	failStaleQueuedJobsCount  int64
	failStaleQueuedJobsError  error

	deleteOldJobsCalls  map[model.JobStatus]int
	deleteOldJobsCounts map[model.JobStatus]int64
	deleteOldJobsError  error
}

func (m *mockReaperRepo) FailStaleQueuedJobs(
	_ context.Context,
	_ time.Duration,
	_ int,
) (int64, error) {
	m.failStaleQueuedJobsCalled++
	if m.failStaleQueuedJobsError != nil {
		return 0, m.failStaleQueuedJobsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.failStaleQueuedJobsCalled == 1 {
		return m.failStaleQueuedJobsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldJobs(
	_ context.Context,
	params core.DeleteOldJobsParams,
) (int64, error) {
	if m.deleteOldJobsCalls == nil {
		m.deleteOldJobsCalls = make(map[model.JobStatus]int)
	}
	if m.deleteOldJobsCounts == nil {
		m.deleteOldJobsCounts = make(map[model.JobStatus]int64)
	}

	m.deleteOldJobsCalls[params.Status]++
	if m.deleteOldJobsError != nil {
		return 0, m.deleteOldJobsError
	}
	// Return count on first call per status, then 0 to simulate batch exhaustion
	if m.deleteOldJobsCalls[params.Status] == 1 {
		return m.deleteOldJobsCounts[params.Status], nil
	}
	return 0, nil
}

func reaperTestConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        5 * time.Minute,
		QueuedMaxAge:    24 * time.Hour,
		CompletedMaxAge: 7 * 24 * time.Hour,
		FailedMaxAge:    7 * 24 * time.Hour,
		CancelledMaxAge: 7 * 24 * time.Hour,
		BatchSize:       1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: reaperTestConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Repo:   nil,
			Config: reaperTestConfig(),
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("runs all cleanup operations successfully", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStaleQueuedJobsCount: 5,
			deleteOldJobsCounts: map[model.JobStatus]int64{
				model.JobStatusCompleted: 10,
				model.JobStatusFailed:    3,
				model.JobStatusCancelled: 1,
			},
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())

		require.NoError(t, err)
		// Each operation is called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failStaleQueuedJobsCalled)
		assert.Equal(t, 2, repo.deleteOldJobsCalls[model.JobStatusCompleted])
		assert.Equal(t, 2, repo.deleteOldJobsCalls[model.JobStatusFailed])
		assert.Equal(t, 2, repo.deleteOldJobsCalls[model.JobStatusCancelled])
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStaleQueuedJobsError: errors.New("fail error"),
			deleteOldJobsCounts: map[model.JobStatus]int64{
				model.JobStatusCompleted: 10,
			},
		}

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})
		require.NoError(t, err)

		err = svc.runCleanup(context.Background())

		// Should return error but still call all cleanup methods
		require.Error(t, err)
		assert.Equal(t, 1, repo.failStaleQueuedJobsCalled)
		assert.Equal(t, 2, repo.deleteOldJobsCalls[model.JobStatusCompleted])
		assert.Equal(t, 1, repo.deleteOldJobsCalls[model.JobStatusFailed])
		assert.Equal(t, 1, repo.deleteOldJobsCalls[model.JobStatusCancelled])
	})
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := reaperTestConfig()
		cfg.Interval = 100 * time.Millisecond

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		// Wait a bit to ensure at least one cleanup runs
		time.Sleep(150 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			// Should return nil on graceful shutdown
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}

		assert.GreaterOrEqual(t, repo.failStaleQueuedJobsCalled, 1)
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			failStaleQueuedJobsError: errors.New("test error"),
		}
		cfg := reaperTestConfig()
		cfg.Interval = 50 * time.Millisecond

		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err = svc.Run(ctx)

		// Should return context deadline exceeded, not the cleanup error
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		assert.GreaterOrEqual(t, repo.failStaleQueuedJobsCalled, 2)
	})
}
