// Package httpx provides HTTP handlers and utilities for the jobforge API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/openscale/jobforge/internal/domain/model"
	apperrors "github.com/openscale/jobforge/internal/errors"
	"github.com/openscale/jobforge/internal/service"
)

// JobHandlers provides HTTP handlers for job submission and lifecycle
// operations.
type JobHandlers struct {
	Queue *service.QueueService
}

// SubmitJob handles HTTP requests to submit a new job. Accepted jobs are
// queued for asynchronous processing, so the response is 202.
func (h *JobHandlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitJobRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.OwnerID == "" {
		req.OwnerID = PrincipalFromContext(r.Context()).Subject
	}

	job, err := h.Queue.Submit(r.Context(), &req)
	if err != nil {
		writeJobError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, job)
}

// GetJob handles HTTP requests to fetch a single job by ID.
func (h *JobHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	principal := PrincipalFromContext(r.Context())

	job, err := h.Queue.GetJob(r.Context(), id, principal)
	if err != nil {
		writeJobError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles HTTP requests to list an owner's jobs, newest first.
// The owner query param defaults to the caller's own subject.
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromContext(r.Context())
	ownerID := r.URL.Query().Get("owner")
	if ownerID == "" {
		ownerID = principal.Subject
	}
	if ownerID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "owner_required",
			Err:     errors.New("owner query parameter is required"),
		})
		return
	}

	jobs, err := h.Queue.ListByOwner(r.Context(), ownerID, principal)
	if err != nil {
		writeJobError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, jobs)
}

// CancelJob handles HTTP requests to cancel a job. Cancellation is
// cooperative: the response reports whether a cancel was requested, not that
// the job has stopped.
func (h *JobHandlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	principal := PrincipalFromContext(r.Context())

	cancelled, err := h.Queue.Cancel(r.Context(), id, principal)
	if err != nil {
		writeJobError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"cancelled": cancelled})
}

// writeJobError maps service errors to HTTP status codes and stable error
// codes.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrJobNotFound):
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: err})
	case errors.Is(err, service.ErrUnknownJobType):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "unknown_type", Err: err})
	case errors.Is(err, service.ErrEmptyScope):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "empty_scope", Err: err})
	case apperrors.IsForbidden(err):
		WriteError(w, ErrorParams{Code: http.StatusForbidden, ErrCode: "forbidden", Err: err})
	case apperrors.IsValidation(err):
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation_failed", Err: err})
	default:
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal_error", Err: err})
	}
}
