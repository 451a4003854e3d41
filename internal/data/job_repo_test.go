package data

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
	"github.com/openscale/jobforge/internal/testutil"
)

var _ TimeProvider = (*testutil.TestTimeProvider)(nil)

func TestJobRepo_Create(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	tests := []struct {
		name    string
		req     *model.SubmitJobRequest
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid submission",
			req:     testutil.NewSubmitRequest().Build(),
			wantErr: false,
		},
		{
			name:    "high priority with custom retries",
			req:     testutil.NewSubmitRequest().WithPriority(model.JobPriorityHigh).WithMaxRetries(5).Build(),
			wantErr: false,
		},
		{
			name:    "empty scope",
			req:     testutil.NewSubmitRequest().WithScopeSize(0).Build(),
			wantErr: true,
			errMsg:  "scope must not be empty",
		},
		{
			name:    "missing owner",
			req:     testutil.NewSubmitRequest().WithOwner("").Build(),
			wantErr: true,
			errMsg:  "owner id is required",
		},
		{
			name:    "missing type",
			req:     testutil.NewSubmitRequest().WithType("").Build(),
			wantErr: true,
			errMsg:  "job type is required",
		},
	}

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				job, err := repo.Create(context.Background(), tt.req)
				if tt.wantErr {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.errMsg)
					return
				}
				require.NoError(t, err)
				require.NotNil(t, job)
				assert.NotEmpty(t, job.ID)
				assert.Equal(t, model.JobStatusQueued, job.Status)
				assert.Equal(t, tt.req.OwnerID, job.OwnerID)
				assert.Equal(t, len(tt.req.Scope), job.Progress.Total)
				assert.Zero(t, job.Progress.Processed)
				assert.False(t, job.CancelRequested)
			})
		}
	})
}

func TestJobRepo_ClaimOrder(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		for _, p := range []model.JobPriority{
			model.JobPriorityLow,
			model.JobPriorityHigh,
			model.JobPriorityMedium,
		} {
			_, err := repo.Create(ctx, testutil.NewSubmitRequest().WithPriority(p).Build())
			require.NoError(t, err)
		}

		claim := func() *model.Job {
			job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
			require.NoError(t, err)
			return job
		}

		assert.Equal(t, model.JobPriorityHigh, claim().Priority)
		assert.Equal(t, model.JobPriorityMedium, claim().Priority)
		assert.Equal(t, model.JobPriorityLow, claim().Priority)

		_, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

func TestJobRepo_ClaimFIFOWithinPriority(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		first, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
		require.NoError(t, err)
		second, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
		require.NoError(t, err)

		claimed, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)
		assert.Equal(t, first.ID, claimed.ID)

		claimed, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)
		assert.Equal(t, second.ID, claimed.ID)
	})
}

func TestJobRepo_ClaimRespectsOwnerCap(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		_, err := repo.Create(ctx, testutil.NewSubmitRequest().WithOwner("acct-busy").Build())
		require.NoError(t, err)
		_, err = repo.Create(ctx, testutil.NewSubmitRequest().WithOwner("acct-busy").Build())
		require.NoError(t, err)
		other, err := repo.Create(ctx, testutil.NewSubmitRequest().WithOwner("acct-idle").Build())
		require.NoError(t, err)

		params := core.ClaimParams{LeaseSeconds: 30, OwnerActiveCap: 1}

		claimed, err := repo.ClaimNext(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, "acct-busy", claimed.OwnerID)

		// The busy owner is at its cap, so the other owner's newer job wins.
		claimed, err = repo.ClaimNext(ctx, params)
		require.NoError(t, err)
		assert.Equal(t, other.ID, claimed.ID)

		_, err = repo.ClaimNext(ctx, params)
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

func TestJobRepo_ConcurrentClaimsNeverDouble(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		const jobCount = 10
		for range jobCount {
			_, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
			require.NoError(t, err)
		}

		const claimers = 4
		results := make(chan string, jobCount)
		var wg sync.WaitGroup
		for range claimers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
					if errors.Is(err, model.ErrNoJobsAvailable) {
						return
					}
					if err != nil {
						t.Errorf("claim: %v", err)
						return
					}
					results <- job.ID
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := make(map[string]bool)
		for id := range results {
			assert.False(t, seen[id], "job %s claimed twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, jobCount)
	})
}

func TestJobRepo_CancelFlow(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		job, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
		require.NoError(t, err)

		ok, err := repo.RequestCancel(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		// Repeated requests are accepted while the job is non-terminal.
		ok, err = repo.RequestCancel(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := repo.FinalizeCancelledQueued(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCancelled, got.Status)
		require.NotNil(t, got.CompletedAt)

		// Terminal jobs reject further cancel requests.
		ok, err = repo.RequestCancel(ctx, job.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		// A cancel-requested job is never claimable.
		_, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)
	})
}

func TestJobRepo_ProgressAndComplete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		created, err := repo.Create(ctx, testutil.NewSubmitRequest().WithScopeSize(250).Build())
		require.NoError(t, err)

		job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)
		require.Equal(t, created.ID, job.ID)
		assert.Equal(t, model.JobStatusRunning, job.Status)
		require.NotNil(t, job.LeaseExpiresAt)

		progress := job.Progress
		progress.Add(90, 5, 5)
		ok, err := repo.UpdateProgress(ctx, core.ProgressUpdate{
			JobID:        job.ID,
			Progress:     progress,
			LeaseSeconds: 30,
		})
		require.NoError(t, err)
		assert.True(t, ok)

		// A stale update with lower processed count is rejected.
		stale := job.Progress
		stale.Add(10, 0, 0)
		ok, err = repo.UpdateProgress(ctx, core.ProgressUpdate{
			JobID:        job.ID,
			Progress:     stale,
			LeaseSeconds: 30,
		})
		require.NoError(t, err)
		assert.False(t, ok)

		final := progress
		final.Add(140, 5, 5)
		ok, err = repo.Complete(ctx, core.CompleteParams{
			JobID:    job.ID,
			Progress: final,
			Result:   []byte(`{"sent":230}`),
		})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		assert.Equal(t, 250, got.Progress.Processed)
		assert.JSONEq(t, `{"sent":230}`, string(got.Result))
		require.NotNil(t, got.CompletedAt)
		assert.Nil(t, got.LeaseExpiresAt)
	})
}

func TestJobRepo_FailRetryThenExhaust(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		tp := testutil.NewTestTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{RetryDelaySeconds: 10, TimeProvider: tp})
		ctx := context.Background()

		_, err := repo.Create(ctx, testutil.NewSubmitRequest().WithMaxRetries(2).Build())
		require.NoError(t, err)

		job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		ok, err := repo.Fail(ctx, job.ID, "handler exploded")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, got.Status)
		assert.Equal(t, 1, got.RetryCount)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "handler exploded", *got.LastError)

		// The retry is delayed; nothing is claimable until the delay elapses.
		_, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		assert.ErrorIs(t, err, model.ErrNoJobsAvailable)

		tp.AddTime(11 * time.Second)
		job, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		ok, err = repo.Fail(ctx, job.ID, "handler exploded again")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, got.Status)
		assert.Equal(t, 2, got.RetryCount)

		// Third attempt exhausts the budget: two retries after the initial run.
		tp.AddTime(11 * time.Second)
		job, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		ok, err = repo.Fail(ctx, job.ID, "handler exploded for good")
		require.NoError(t, err)
		assert.True(t, ok)

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, 3, got.RetryCount)
		require.NotNil(t, got.CompletedAt)
	})
}

func TestJobRepo_ReleaseAndRecovery(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		tp := testutil.NewTestTimeProvider(testutil.TestTime())
		repo := NewJobRepo(db, RepoConfig{TimeProvider: tp})
		ctx := context.Background()

		_, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
		require.NoError(t, err)

		job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		// Release puts the job back for another worker.
		ok, err := repo.Release(ctx, job.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, got.Status)
		assert.Nil(t, got.LeaseExpiresAt)

		// Claim again and let the lease expire.
		_, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		tp.AddTime(31 * time.Second)
		n, err := repo.RequeueExpired(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		// Claim once more and simulate a crash sweep at startup.
		_, err = repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)

		n, err = repo.RequeueAllRunning(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err = repo.GetByID(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusQueued, got.Status)
	})
}

func TestJobRepo_GetByID_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		_, err := repo.GetByID(context.Background(), "00000000-0000-0000-0000-000000000000")
		assert.ErrorIs(t, err, model.ErrJobNotFound)
	})
}

func TestJobRepo_ListByOwner(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := repo.Create(ctx, testutil.NewSubmitRequest().WithOwner("acct-a").Build())
			require.NoError(t, err)
		}
		_, err := repo.Create(ctx, testutil.NewSubmitRequest().WithOwner("acct-b").Build())
		require.NoError(t, err)

		jobs, err := repo.ListByOwner(ctx, "acct-a")
		require.NoError(t, err)
		require.Len(t, jobs, 3)
		for _, j := range jobs {
			assert.Equal(t, "acct-a", j.OwnerID)
		}

		jobs, err = repo.ListByOwner(ctx, "acct-missing")
		require.NoError(t, err)
		assert.Empty(t, jobs)
	})
}

func TestJobRepo_Stats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewJobRepo(db, RepoConfig{})
		ctx := context.Background()

		for i := 0; i < 2; i++ {
			_, err := repo.Create(ctx, testutil.NewSubmitRequest().Build())
			require.NoError(t, err)
		}
		job, err := repo.ClaimNext(ctx, core.ClaimParams{LeaseSeconds: 30})
		require.NoError(t, err)
		ok, err := repo.Complete(ctx, core.CompleteParams{JobID: job.ID, Progress: job.Progress})
		require.NoError(t, err)
		require.True(t, ok)

		stats, err := repo.Stats(ctx, 5*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.CountsByStatus[model.JobStatusQueued])
		assert.Equal(t, 0, stats.CountsByStatus[model.JobStatusRunning])
		assert.Equal(t, 1, stats.CountsByStatus[model.JobStatusCompleted])
		assert.Positive(t, stats.ThroughputPerMin)
	})
}
