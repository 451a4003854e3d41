package core

import (
	"context"
	"time"

	"github.com/openscale/jobforge/internal/domain/model"
)

// This file contains repository interface definitions (ports in hexagonal
// architecture). Service and engine implementations depend on these
// interfaces, not on concrete data-layer types.

// ClaimParams groups parameters for JobStore.ClaimNext.
type ClaimParams struct {
	// LeaseSeconds bounds how long the claim is held before the job is
	// considered orphaned and requeued.
	LeaseSeconds int
	// OwnerActiveCap is the per-owner running-job cap; jobs whose owner is
	// at the cap stay queued. Zero means unlimited.
	OwnerActiveCap int
}

// ProgressUpdate groups parameters for JobStore.UpdateProgress.
type ProgressUpdate struct {
	JobID        string
	Progress     model.Progress
	LeaseSeconds int
}

// DeleteOldJobsParams groups parameters for reaper deletion of terminal jobs.
type DeleteOldJobsParams struct {
	Status    model.JobStatus
	MaxAge    time.Duration
	BatchSize int
}

// CompleteParams groups parameters for JobStore.Complete.
type CompleteParams struct {
	JobID    string
	Progress model.Progress
	Result   []byte
}

// JobStore defines the interface for job persistence. It is the only shared
// mutable resource in the engine; workers never treat in-memory job state as
// authoritative.
type JobStore interface {
	Create(ctx context.Context, req *model.SubmitJobRequest) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.Job, error)

	// ClaimNext atomically claims the best queued job (priority desc,
	// created_at asc) for a worker, transitioning it queued -> running.
	// Returns model.ErrNoJobsAvailable when nothing is claimable.
	ClaimNext(ctx context.Context, params ClaimParams) (*model.Job, error)

	// FinalizeCancelledQueued transitions queued jobs with a pending cancel
	// request straight to cancelled so they never reach running.
	FinalizeCancelledQueued(ctx context.Context) (int64, error)

	// RequeueExpired returns running jobs with an expired lease to queued,
	// preserving progress.
	RequeueExpired(ctx context.Context) (int64, error)

	// RequeueAllRunning reconciles every running job back to queued. Called
	// once at processor start; with a single active processor any running
	// job at that point is an orphan from a prior instance.
	RequeueAllRunning(ctx context.Context) (int64, error)

	// Release returns a running job to queued, preserving progress. Used at
	// processor stop after the current chunk has been persisted.
	Release(ctx context.Context, id string) (bool, error)

	// UpdateProgress persists chunk-boundary progress and refreshes the
	// claim lease. The update is guarded: it only applies to running jobs
	// and never moves processed backwards.
	UpdateProgress(ctx context.Context, update ProgressUpdate) (bool, error)

	// RequestCancel sets the cancel flag on a non-terminal job. Returns
	// false when the job is already terminal.
	RequestCancel(ctx context.Context, id string) (bool, error)

	// MarkCancelled finalises a running job as cancelled at a chunk
	// boundary; already-persisted progress is retained.
	MarkCancelled(ctx context.Context, id string) (bool, error)

	Complete(ctx context.Context, params CompleteParams) (bool, error)

	// Fail records a fatal error. While retry budget remains the job goes
	// back to queued with a retry delay; once exhausted it is terminally
	// failed.
	Fail(ctx context.Context, id, errMsg string) (bool, error)

	// Stats aggregates queue-wide counts, waits and throughput over the
	// given rolling window.
	Stats(ctx context.Context, window time.Duration) (*model.QueueStats, error)

	// WaitForNotification blocks until a new job is submitted or ctx ends.
	WaitForNotification(ctx context.Context) error
}

// ReaperRepository defines batch cleanup operations over jobs. Both
// operations are advisory-locked so overlapping reaper instances do not
// duplicate work.
type ReaperRepository interface {
	// FailStaleQueuedJobs marks queued jobs older than maxAge as failed,
	// up to batchSize rows per call.
	FailStaleQueuedJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldJobs removes terminal jobs past retention, up to
	// params.BatchSize rows per call.
	DeleteOldJobs(ctx context.Context, params DeleteOldJobsParams) (int64, error)
}

// CacheRepository defines the interface for the stats snapshot cache.
type CacheRepository interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) (bool, error)
}

// HandlerCatalog reports which job types have a registered handler. The
// queue service consults it at submission so unknown types never enter the
// queue.
type HandlerCatalog interface {
	Has(jobType string) bool
	Types() []string
}
