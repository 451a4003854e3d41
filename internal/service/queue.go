package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/auth"
	"github.com/openscale/jobforge/internal/domain/model"
	apperrors "github.com/openscale/jobforge/internal/errors"
)

// Sentinel errors for job submission and access control. Handlers map these
// to HTTP status codes via errors.Is.
var (
	// ErrUnknownJobType is returned when a submission names a job type with
	// no registered handler.
	ErrUnknownJobType = apperrors.ValidationField("type", "unknown job type")
	// ErrEmptyScope is returned when a submission carries no scope items.
	ErrEmptyScope = apperrors.ValidationField("scope", "scope must not be empty")
	// ErrForbidden is returned when the principal is neither the job's owner
	// nor an operator.
	ErrForbidden = apperrors.Forbidden("not allowed to access this job")
)

// QueueServiceOptions groups dependencies for QueueService.
type QueueServiceOptions struct {
	Store   core.JobStore       // Required: job persistence
	Catalog core.HandlerCatalog // Required: registered job types
	Logger  *slog.Logger        // Optional: structured logger
}

// QueueService accepts job submissions and exposes owner-facing queue
// operations. It gates submissions on handler registration so unknown job
// types never enter the queue, and enforces owner/operator access on reads
// and cancellation.
type QueueService struct {
	store   core.JobStore
	catalog core.HandlerCatalog
	logger  *slog.Logger
}

// NewQueueService constructs a new QueueService.
func NewQueueService(opts QueueServiceOptions) (*QueueService, error) {
	if opts.Store == nil {
		return nil, errors.New("JobStore is required")
	}
	if opts.Catalog == nil {
		return nil, errors.New("HandlerCatalog is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "queue_service")
	}

	return &QueueService{
		store:   opts.Store,
		catalog: opts.Catalog,
		logger:  logger,
	}, nil
}

// MustNewQueueService constructs a new QueueService and panics on error.
// Use this when you're certain the options are valid (e.g., in main.go).
func MustNewQueueService(opts QueueServiceOptions) *QueueService {
	svc, err := NewQueueService(opts)
	if err != nil {
		//nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
		panic(fmt.Sprintf("failed to create QueueService: %v", err))
	}
	return svc
}

// Submit validates and persists a new job. The per-owner running cap is
// back-pressure applied at claim time, never a reason to reject here.
func (s *QueueService) Submit(ctx context.Context, req *model.SubmitJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, apperrors.Validation("submit request is required")
	}
	if !s.catalog.Has(req.Type) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJobType, req.Type)
	}
	if len(req.Scope) == 0 {
		return nil, ErrEmptyScope
	}

	job, err := s.store.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submit job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "job submitted",
			"id", job.ID,
			"type", job.Type,
			"owner_id", job.OwnerID,
			"priority", job.Priority,
			"scope_size", len(job.Scope),
		)
	}

	return job, nil
}

// GetJob loads a job and enforces owner/operator access.
func (s *QueueService) GetJob(ctx context.Context, id string, principal auth.Principal) (*model.Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	if !principal.CanAccessJob(job.OwnerID) {
		return nil, ErrForbidden
	}
	return job, nil
}

// ListByOwner returns an owner's jobs, newest first. Principals may list
// their own jobs; operators may list anyone's.
func (s *QueueService) ListByOwner(ctx context.Context, ownerID string, principal auth.Principal) ([]*model.Job, error) {
	if !principal.CanAccessJob(ownerID) {
		return nil, ErrForbidden
	}
	jobs, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs for owner %s: %w", ownerID, err)
	}
	return jobs, nil
}

// Cancel requests cancellation of a job. Returns false without error when
// the job is already terminal. The actual transition to cancelled happens
// inside the engine: queued jobs are finalised by the pre-claim sweep and
// running jobs stop at the next chunk boundary.
func (s *QueueService) Cancel(ctx context.Context, id string, principal auth.Principal) (bool, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			return false, err
		}
		return false, fmt.Errorf("get job %s: %w", id, err)
	}
	if !principal.CanAccessJob(job.OwnerID) {
		return false, ErrForbidden
	}
	if job.Status.Terminal() {
		return false, nil
	}

	requested, err := s.store.RequestCancel(ctx, id)
	if err != nil {
		return false, fmt.Errorf("request cancel for job %s: %w", id, err)
	}

	if s.logger != nil && requested {
		s.logger.InfoContext(ctx, "job cancellation requested",
			"id", id,
			"status", job.Status,
			"requested_by", principal.Subject,
		)
	}

	return requested, nil
}
