package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openscale/jobforge/internal/backoff"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/chunk"
	"github.com/openscale/jobforge/internal/domain/job"
	"github.com/openscale/jobforge/internal/domain/model"
	obserrors "github.com/openscale/jobforge/internal/observability/errors"
	"github.com/openscale/jobforge/internal/observability/metrics"
	"github.com/openscale/jobforge/internal/observability/notify"
	"github.com/openscale/jobforge/internal/observability/statsd"
	"github.com/openscale/jobforge/internal/service/failurenotifier"
)

const (
	defaultWorkers      = 4
	defaultLease        = 30 * time.Second
	defaultChunkRetries = 3
	defaultPollInterval = 5 * time.Second

	// maxResultErrors caps how many per-item error reasons are kept in the
	// job result to bound row size for huge scopes.
	maxResultErrors = 100
)

// Subscriber delivers wake-ups when new jobs become claimable.
type Subscriber interface {
	Subscribe() (func(), <-chan struct{})
}

// PoolOptions configures the worker pool.
type PoolOptions struct {
	Store    core.JobStore
	Registry *Registry
	Notifier Subscriber
	Logger   *slog.Logger

	Workers        int
	ChunkSize      int
	Lease          time.Duration
	OwnerActiveCap int
	ChunkRetries   int
	PollInterval   time.Duration
	Backoff        backoff.Strategy

	Metrics         statsd.Sink
	FailureNotifier *failurenotifier.Service
}

// Pool claims queued jobs and executes them chunk by chunk across a fixed
// set of workers.
type Pool struct {
	store    core.JobStore
	registry *Registry
	notifier Subscriber
	logger   *slog.Logger

	workers        int
	chunks         chunk.Policy
	lease          *job.LeasePolicy
	ownerActiveCap int
	chunkRetries   int
	pollInterval   time.Duration
	backoff        backoff.Strategy

	metrics         statsd.Sink
	failureNotifier *failurenotifier.Service
}

// NewPool constructs a worker pool. Store, Registry and Notifier are
// required; everything else has a default.
func NewPool(opts PoolOptions) (*Pool, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if opts.Notifier == nil {
		return nil, errors.New("notifier is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "engine_pool")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	leaseDur := opts.Lease
	if leaseDur <= 0 {
		leaseDur = defaultLease
	}
	lease, err := job.NewLeasePolicy(leaseDur)
	if err != nil {
		return nil, err
	}
	retries := opts.ChunkRetries
	if retries <= 0 {
		retries = defaultChunkRetries
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	strategy := opts.Backoff
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}

	return &Pool{
		store:           opts.Store,
		registry:        opts.Registry,
		notifier:        opts.Notifier,
		logger:          logger,
		workers:         workers,
		chunks:          chunk.NewPolicy(opts.ChunkSize),
		lease:           lease,
		ownerActiveCap:  opts.OwnerActiveCap,
		chunkRetries:    retries,
		pollInterval:    poll,
		backoff:         strategy,
		metrics:         opts.Metrics,
		failureNotifier: opts.FailureNotifier,
	}, nil
}

// Workers returns the configured worker count.
func (p *Pool) Workers() int { return p.workers }

// Run starts the worker goroutines and processes jobs until the context is
// cancelled. The first worker error cancels the rest.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "starting worker pool",
		"workers", p.workers,
		"chunk_size", p.chunks.Size(),
		"lease", p.lease.Default(),
	)

	unsub, ch := p.notifier.Subscribe()
	defer unsub()

	// first worker error cancels the group context and stops the rest
	g, ctx := errgroup.WithContext(ctx)
	for range p.workers {
		g.Go(func() error {
			return p.workerLoop(ctx, ch)
		})
	}

	return g.Wait()
}

func (p *Pool) workerLoop(ctx context.Context, notifyCh <-chan struct{}) error {
	for ctx.Err() == nil {
		if n, err := p.store.FinalizeCancelledQueued(ctx); err != nil {
			p.logger.ErrorContext(ctx, "finalize cancelled queued jobs", "error", err)
		} else if n > 0 {
			p.logger.InfoContext(ctx, "finalized cancelled queued jobs", "count", n)
		}

		job, err := p.store.ClaimNext(ctx, core.ClaimParams{
			LeaseSeconds:   p.lease.ResolveSeconds(0),
			OwnerActiveCap: p.ownerActiveCap,
		})
		switch {
		case err == nil:
			if job != nil {
				p.processJob(ctx, job)
			}
		case errors.Is(err, model.ErrNoJobsAvailable):
			if !p.waitForWork(ctx, notifyCh) {
				return nil
			}
		case ctx.Err() != nil:
			return nil
		default:
			return fmt.Errorf("claim next: %w", err)
		}
	}
	return ctx.Err()
}

// waitForWork blocks until a new-job notification arrives or the poll
// interval elapses. The ticker fallback wakes workers for retry-delayed
// jobs whose scheduled_at has passed without a fresh notification.
func (p *Pool) waitForWork(ctx context.Context, notifyCh <-chan struct{}) bool {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-notifyCh:
		return true
	case <-timer.C:
		return true
	}
}

func (p *Pool) processJob(ctx context.Context, job *model.Job) {
	start := time.Now()
	emit := func(transition, result string, err error) {
		metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
			JobType:    job.Type,
			Transition: transition,
			Result:     result,
			Duration:   time.Since(start),
			Err:        err,
		})
	}
	emit("claimed", metrics.ResultSuccess, nil)

	handler, ok := p.registry.Lookup(job.Type)
	if !ok {
		// Submission gates on the registry, so this only happens when a
		// processor restarts with a handler removed.
		err := fmt.Errorf("no handler for job type %s", job.Type)
		p.failJob(ctx, job, err)
		emit("failed", metrics.ResultError, err)
		return
	}

	summary := newResultSummary(job.Progress)
	progress := job.Progress

	for _, items := range p.chunks.Remaining(job.Scope, progress.Processed) {
		if ctx.Err() != nil {
			p.releaseJob(ctx, job.ID)
			emit("released", metrics.ResultNoop, nil)
			return
		}

		cancelled, err := p.cancelRequested(ctx, job.ID)
		if err != nil {
			p.logger.ErrorContext(ctx, "re-read job for cancel check", "job_id", job.ID, "error", err)
			p.releaseJob(ctx, job.ID)
			emit("released", metrics.ResultError, err)
			return
		}
		if cancelled {
			p.markCancelled(ctx, job)
			emit("cancelled", metrics.ResultSuccess, nil)
			return
		}

		results, err := p.executeChunk(ctx, handler, job, items)
		if err != nil {
			if ctx.Err() != nil && !IsFatal(err) {
				// Stop or shutdown, not a handler verdict. Hand the job
				// back to the queue with its progress intact.
				p.releaseJob(ctx, job.ID)
				emit("released", metrics.ResultNoop, nil)
				return
			}
			p.failJob(ctx, job, err)
			emit("failed", metrics.ResultError, err)
			return
		}

		succeeded, skipped, errored := summary.addChunk(progress.Processed, items, results)
		progress.Add(succeeded, skipped, errored)

		updateCtx, cancel := p.writeCtx(ctx)
		ok, err := p.store.UpdateProgress(updateCtx, core.ProgressUpdate{
			JobID:        job.ID,
			Progress:     progress,
			LeaseSeconds: p.lease.ResolveSeconds(0),
		})
		cancel()
		if err != nil || !ok {
			if err != nil {
				p.logger.ErrorContext(ctx, "persist progress", "job_id", job.ID, "error", err)
			} else {
				p.logger.WarnContext(ctx, "progress update rejected, abandoning claim", "job_id", job.ID)
			}
			p.releaseJob(ctx, job.ID)
			emit("released", metrics.ResultError, err)
			return
		}
	}

	result, err := json.Marshal(summary)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal job result", "job_id", job.ID, "error", err)
		result = nil
	}

	completeCtx, cancel := p.writeCtx(ctx)
	defer cancel()
	if completed, err := p.store.Complete(completeCtx, core.CompleteParams{
		JobID:    job.ID,
		Progress: progress,
		Result:   result,
	}); err != nil {
		p.logger.ErrorContext(ctx, "complete job", "job_id", job.ID, "error", err)
		emit("completed", metrics.ResultError, err)
	} else {
		res := metrics.ResultNoop
		if completed {
			res = metrics.ResultSuccess
		}
		emit("completed", res, nil)
	}
}

// executeChunk runs a handler attempt with transient-error retries. A
// fatal error or an exhausted retry budget with a fatal cause returns the
// error; exhausted transient retries mark every item errored and return
// results so the job keeps going.
//
// The handler runs on a context detached from the worker's, so a stop or
// shutdown never aborts an in-flight chunk. ctx still gates the retry
// loop: once it is cancelled no further attempts start.
func (p *Pool) executeChunk(
	ctx context.Context,
	handler Handler,
	job *model.Job,
	items []json.RawMessage,
) ([]ItemResult, error) {
	execCtx := context.WithoutCancel(ctx)
	var lastErr error
	for attempt := 1; attempt <= p.chunkRetries; attempt++ {
		results, err := handler.ExecuteChunk(execCtx, job, items)
		if err == nil {
			return results, nil
		}
		if IsFatal(err) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		p.logger.WarnContext(ctx, "chunk attempt failed",
			"job_id", job.ID,
			"attempt", attempt,
			"error", err,
		)
		if attempt < p.chunkRetries && !p.sleep(ctx, p.backoff.Delay(attempt)) {
			return nil, ctx.Err()
		}
	}

	// Retry budget exhausted on a transient error: the chunk's items are
	// recorded as errored and the job continues.
	results := make([]ItemResult, len(items))
	for i := range items {
		results[i] = ItemResult{
			Index:   i,
			Outcome: OutcomeErrored,
			Reason:  lastErr.Error(),
		}
	}
	return results, nil
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *Pool) cancelRequested(ctx context.Context, id string) (bool, error) {
	fresh, err := p.store.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return fresh.CancelRequested, nil
}

func (p *Pool) markCancelled(ctx context.Context, job *model.Job) {
	writeCtx, cancel := p.writeCtx(ctx)
	defer cancel()
	if _, err := p.store.MarkCancelled(writeCtx, job.ID); err != nil {
		p.logger.ErrorContext(ctx, "mark job cancelled", "job_id", job.ID, "error", err)
	}
}

// writeCtx returns ctx unchanged while it is live, or a detached timeout
// context once it is cancelled, so store writes recording finished work
// still land during a stop.
func (p *Pool) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx.Err() == nil {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

func (p *Pool) releaseJob(ctx context.Context, id string) {
	// Use a detached context so shutdown still returns the job to queued.
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := p.store.Release(releaseCtx, id); err != nil {
		p.logger.ErrorContext(ctx, "release job", "job_id", id, "error", err)
	}
}

func (p *Pool) failJob(ctx context.Context, job *model.Job, cause error) {
	writeCtx, cancel := p.writeCtx(ctx)
	defer cancel()
	ok, err := p.store.Fail(writeCtx, job.ID, cause.Error())
	if err != nil {
		p.logger.ErrorContext(ctx, "fail job", "job_id", job.ID, "error", err, "original_error", cause)
		return
	}
	if !ok {
		return
	}
	p.notifyIfTerminal(writeCtx, job, cause)
}

// notifyIfTerminal re-reads the job after a Fail and fans out a failure
// notification only when the retry budget is exhausted.
func (p *Pool) notifyIfTerminal(ctx context.Context, job *model.Job, cause error) {
	if p.failureNotifier == nil || !p.failureNotifier.Enabled() {
		return
	}
	fresh, err := p.store.GetByID(ctx, job.ID)
	if err != nil {
		p.logger.ErrorContext(ctx, "re-read job after fail", "job_id", job.ID, "error", err)
		return
	}
	if fresh.Status != model.JobStatusFailed {
		return
	}
	p.failureNotifier.NotifyJobFailure(ctx, notify.JobFailurePayload{
		JobID:      job.ID,
		JobType:    job.Type,
		OwnerID:    job.OwnerID,
		Error:      cause.Error(),
		ErrorClass: obserrors.Classify(cause),
		Severity:   notify.SeverityCritical,
		OccurredAt: time.Now().UTC(),
		Metadata: map[string]string{
			"retry_count": fmt.Sprintf("%d", fresh.RetryCount),
			"max_retries": fmt.Sprintf("%d", fresh.MaxRetries),
		},
	})
}
