// Package model defines the core data types and structures used throughout the jobforge engine.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the current status of a job.
type JobStatus string

// JobPriority represents the scheduling priority of a job. Priority is used
// only for tie-breaking among claimable jobs, never for preemption.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type JobPriority string

const (
	// JobStatusQueued indicates a job is waiting to be claimed by a worker.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates a job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates a job has finished, possibly with per-item errors.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates a job failed fatally and exhausted its retries.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates a job was cancelled before finishing.
	JobStatusCancelled JobStatus = "cancelled"

	// JobPriorityLow is the lowest scheduling priority.
	JobPriorityLow JobPriority = "low"
	// JobPriorityMedium is the default scheduling priority.
	JobPriorityMedium JobPriority = "medium"
	// JobPriorityHigh is the highest scheduling priority.
	JobPriorityHigh JobPriority = "high"
)

// ErrNoJobsAvailable is returned when no jobs are available to claim.
var ErrNoJobsAvailable = errors.New("no jobs available")

// ErrJobNotFound is returned when a job lookup misses.
var ErrJobNotFound = errors.New("job not found")

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusQueued || s == JobStatusRunning || s == JobStatusCompleted ||
		s == JobStatusFailed || s == JobStatusCancelled
}

// Terminal returns true for statuses with no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Valid returns true if the JobPriority is valid.
func (p JobPriority) Valid() bool {
	return p == JobPriorityLow || p == JobPriorityMedium || p == JobPriorityHigh
}

// Weight returns the numeric rank persisted to the database; claim ordering
// is by weight descending.
func (p JobPriority) Weight() int {
	switch p {
	case JobPriorityHigh:
		return 100
	case JobPriorityMedium:
		return 50
	case JobPriorityLow:
		return 0
	default:
		return 0
	}
}

// PriorityFromWeight maps a persisted weight back to the priority enum.
func PriorityFromWeight(w int) JobPriority {
	switch {
	case w >= JobPriorityHigh.Weight():
		return JobPriorityHigh
	case w >= JobPriorityMedium.Weight():
		return JobPriorityMedium
	default:
		return JobPriorityLow
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for JobPriority to allow
// env and JSON parsing. Empty text leaves the priority unset so submission
// normalization can default it.
func (p *JobPriority) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	if v == "" {
		*p = ""
		return nil
	}
	jp := JobPriority(v)
	if jp.Valid() {
		*p = jp
		return nil
	}
	return fmt.Errorf("invalid JobPriority: %q", v)
}

// Progress tracks chunk-granular execution state for a job.
// Invariants: Processed == Succeeded+Skipped+Errored and Processed <= Total.
type Progress struct {
	Total        int `json:"total"`
	Processed    int `json:"processed"`
	Succeeded    int `json:"succeeded"`
	Skipped      int `json:"skipped"`
	Errored      int `json:"errored"`
	CurrentChunk int `json:"current_chunk"`
}

// Add folds one chunk's outcome counts into the progress and advances the
// chunk counter.
func (p *Progress) Add(succeeded, skipped, errored int) {
	p.Succeeded += succeeded
	p.Skipped += skipped
	p.Errored += errored
	p.Processed += succeeded + skipped + errored
	p.CurrentChunk++
}

// Consistent reports whether the progress invariants hold.
func (p Progress) Consistent() bool {
	return p.Processed == p.Succeeded+p.Skipped+p.Errored && p.Processed <= p.Total
}

// Remaining returns the number of scope items not yet processed.
func (p Progress) Remaining() int {
	if p.Total < p.Processed {
		return 0
	}
	return p.Total - p.Processed
}

// Job represents a persisted unit of schedulable work.
type Job struct {
	ID              string            `json:"id"                         db:"id"`
	OwnerID         string            `json:"owner_id"                   db:"owner_id"`
	Type            string            `json:"type"                       db:"type"`
	Priority        JobPriority       `json:"priority"                   db:"priority"`
	Status          JobStatus         `json:"status"                     db:"status"`
	Scope           []json.RawMessage `json:"scope"                      db:"scope"`
	Progress        Progress          `json:"progress"                   db:"progress"`
	Result          json.RawMessage   `json:"result,omitempty"           db:"result"`
	LastError       *string           `json:"error,omitempty"            db:"last_error"`
	CancelRequested bool              `json:"cancel_requested"           db:"cancel_requested"`
	RetryCount      int               `json:"retry_count"                db:"retry_count"`
	MaxRetries      int               `json:"max_retries"                db:"max_retries"`
	ScheduledAt     time.Time         `json:"scheduled_at"               db:"scheduled_at"`
	StartedAt       *time.Time        `json:"started_at,omitempty"       db:"started_at"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"     db:"completed_at"`
	LeaseExpiresAt  *time.Time        `json:"lease_expires_at,omitempty" db:"lease_expires_at"`
	CreatedAt       time.Time         `json:"created_at"                 db:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"                 db:"updated_at"`
}

// SubmitJobRequest represents a request to submit a new job.
type SubmitJobRequest struct {
	Type       string            `json:"type"`
	OwnerID    string            `json:"owner_id"`
	Scope      []json.RawMessage `json:"scope"`
	Priority   JobPriority       `json:"priority,omitempty"`
	MaxRetries *int              `json:"max_retries,omitempty"`
}

const defaultMaxRetries = 3

// Normalize applies submission defaults in place.
func (r *SubmitJobRequest) Normalize() {
	if r.Priority == "" {
		r.Priority = JobPriorityMedium
	}
	if r.MaxRetries == nil {
		mr := defaultMaxRetries
		r.MaxRetries = &mr
	}
}

// Validate validates the SubmitJobRequest fields. Handler registration for
// Type is checked by the queue service, not here.
func (r *SubmitJobRequest) Validate() error {
	if strings.TrimSpace(r.Type) == "" {
		return errors.New("job type is required")
	}
	if strings.TrimSpace(r.OwnerID) == "" {
		return errors.New("owner id is required")
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("invalid priority: %q", r.Priority)
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return errors.New("max retries must be >= 0")
	}
	return nil
}

// QueueStats summarises the state of the queue for operators.
type QueueStats struct {
	CountsByStatus   map[JobStatus]int `json:"counts_by_status"`
	AvgWaitMs        int64             `json:"avg_wait_ms"`
	OldestWaitMs     int64             `json:"oldest_wait_ms"`
	ThroughputPerMin float64           `json:"throughput_per_min"`
}

// HealthLevel is the qualitative backlog signal derived from queue stats.
type HealthLevel string

const (
	// HealthLevelHealthy indicates no concerning backlog.
	HealthLevelHealthy HealthLevel = "healthy"
	// HealthLevelDegraded indicates queued jobs are waiting longer than expected.
	HealthLevelDegraded HealthLevel = "degraded"
	// HealthLevelBacklogged indicates the queue is falling seriously behind.
	HealthLevelBacklogged HealthLevel = "backlogged"
)

// QueueHealth reports the derived backlog signal. It is computed from
// QueueStats, never stored.
type QueueHealth struct {
	Level        HealthLevel `json:"level"`
	OldestWaitMs int64       `json:"oldest_wait_ms"`
}

// ProcessorStatus reports the state of the batch processor controller.
type ProcessorStatus struct {
	Running       bool       `json:"running"`
	ActiveWorkers int        `json:"active_workers"`
	Since         *time.Time `json:"since,omitempty"`
}
