// Package engine executes queued jobs: a handler registry, a worker pool
// that claims and processes jobs chunk by chunk, and a controller exposing
// start/stop to operators.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openscale/jobforge/internal/domain/model"
)

// Outcome classifies the result of processing a single scope item.
type Outcome string

const (
	// OutcomeSucceeded means the item was processed successfully.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeSkipped means the item was intentionally not processed.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeErrored means the item failed; the job continues.
	OutcomeErrored Outcome = "errored"
)

// ItemResult reports the outcome for one item of a chunk. Index is the
// item's position within the chunk.
type ItemResult struct {
	Index   int
	Outcome Outcome
	Reason  string
}

// Handler processes one chunk of a job's scope. Implementations must return
// one ItemResult per item; items without a result are counted as errored.
// Returning a plain error marks the attempt as transient and eligible for
// retry; wrap with Fatal to abort the whole job.
type Handler interface {
	ExecuteChunk(ctx context.Context, job *model.Job, items []json.RawMessage) ([]ItemResult, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, job *model.Job, items []json.RawMessage) ([]ItemResult, error)

// ExecuteChunk implements the Handler interface.
func (f HandlerFunc) ExecuteChunk(ctx context.Context, job *model.Job, items []json.RawMessage) ([]ItemResult, error) {
	return f(ctx, job, items)
}

// FatalError aborts the whole job instead of retrying the chunk.
type FatalError struct {
	Err error
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	if e.Err == nil {
		return "fatal job error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped cause.
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so the engine fails the job rather than retrying the
// chunk. A nil err returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err (or anything it wraps) is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Registry maps job types to their handlers. Registration happens at
// startup; lookups are concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry constructs an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type. Duplicate registrations and empty
// types are rejected.
func (r *Registry) Register(jobType string, h Handler) error {
	jobType = strings.TrimSpace(jobType)
	if jobType == "" {
		return errors.New("job type is required")
	}
	if h == nil {
		return fmt.Errorf("handler for job type %s is nil", jobType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for job type %s", jobType)
	}
	r.handlers[jobType] = h
	return nil
}

// Lookup returns the handler for jobType, if registered.
func (r *Registry) Lookup(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Has reports whether a handler is registered for jobType.
func (r *Registry) Has(jobType string) bool {
	_, ok := r.Lookup(jobType)
	return ok
}

// Types returns the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
