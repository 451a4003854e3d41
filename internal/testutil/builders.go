// Package testutil provides testing utilities and helpers for the jobforge engine.
package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/openscale/jobforge/internal/domain/model"
)

// SubmitRequestBuilder provides a fluent interface for building SubmitJobRequest objects for testing.
type SubmitRequestBuilder struct {
	req *model.SubmitJobRequest
}

// NewSubmitRequest creates a new SubmitRequestBuilder with sensible defaults.
func NewSubmitRequest() *SubmitRequestBuilder {
	return &SubmitRequestBuilder{
		req: &model.SubmitJobRequest{
			Type:     "email_batch",
			OwnerID:  "owner-1",
			Priority: model.JobPriorityMedium,
			Scope:    ScopeItems(3),
		},
	}
}

// WithType sets the job type.
func (b *SubmitRequestBuilder) WithType(jobType string) *SubmitRequestBuilder {
	b.req.Type = jobType
	return b
}

// WithOwner sets the owning account.
func (b *SubmitRequestBuilder) WithOwner(ownerID string) *SubmitRequestBuilder {
	b.req.OwnerID = ownerID
	return b
}

// WithPriority sets the job priority.
func (b *SubmitRequestBuilder) WithPriority(priority model.JobPriority) *SubmitRequestBuilder {
	b.req.Priority = priority
	return b
}

// WithScope sets the scope items.
func (b *SubmitRequestBuilder) WithScope(scope []json.RawMessage) *SubmitRequestBuilder {
	b.req.Scope = scope
	return b
}

// WithScopeSize replaces the scope with n generated items.
func (b *SubmitRequestBuilder) WithScopeSize(n int) *SubmitRequestBuilder {
	b.req.Scope = ScopeItems(n)
	return b
}

// WithMaxRetries sets the retry budget.
func (b *SubmitRequestBuilder) WithMaxRetries(maxRetries int) *SubmitRequestBuilder {
	b.req.MaxRetries = &maxRetries
	return b
}

// Build returns the constructed SubmitJobRequest.
func (b *SubmitRequestBuilder) Build() *model.SubmitJobRequest {
	return b.req
}

// ScopeItems generates n distinct scope items.
func ScopeItems(n int) []json.RawMessage {
	items := make([]json.RawMessage, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, json.RawMessage(fmt.Sprintf(`{"item":%d}`, i)))
	}
	return items
}

// JobBuilder provides a fluent interface for building Job objects for testing.
type JobBuilder struct {
	job *model.Job
}

// NewJob creates a new JobBuilder with sensible defaults.
func NewJob() *JobBuilder {
	now := TestTime()
	return &JobBuilder{
		job: &model.Job{
			ID:          "11111111-1111-1111-1111-111111111111",
			OwnerID:     "owner-1",
			Type:        "email_batch",
			Priority:    model.JobPriorityMedium,
			Status:      model.JobStatusQueued,
			Scope:       ScopeItems(3),
			Progress:    model.Progress{Total: 3},
			MaxRetries:  3,
			ScheduledAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// WithID sets the job ID.
func (b *JobBuilder) WithID(id string) *JobBuilder {
	b.job.ID = id
	return b
}

// WithOwner sets the owning account.
func (b *JobBuilder) WithOwner(ownerID string) *JobBuilder {
	b.job.OwnerID = ownerID
	return b
}

// WithType sets the job type.
func (b *JobBuilder) WithType(jobType string) *JobBuilder {
	b.job.Type = jobType
	return b
}

// WithStatus sets the job status.
func (b *JobBuilder) WithStatus(status model.JobStatus) *JobBuilder {
	b.job.Status = status
	return b
}

// WithPriority sets the job priority.
func (b *JobBuilder) WithPriority(priority model.JobPriority) *JobBuilder {
	b.job.Priority = priority
	return b
}

// WithScopeSize replaces the scope with n generated items and resets total.
func (b *JobBuilder) WithScopeSize(n int) *JobBuilder {
	b.job.Scope = ScopeItems(n)
	b.job.Progress.Total = n
	return b
}

// WithProgress sets the progress record.
func (b *JobBuilder) WithProgress(p model.Progress) *JobBuilder {
	b.job.Progress = p
	return b
}

// WithCancelRequested marks the job as cancel-requested.
func (b *JobBuilder) WithCancelRequested() *JobBuilder {
	b.job.CancelRequested = true
	return b
}

// WithRetries sets the retry counters.
func (b *JobBuilder) WithRetries(count, maxRetries int) *JobBuilder {
	b.job.RetryCount = count
	b.job.MaxRetries = maxRetries
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *JobBuilder) WithCreatedAt(t time.Time) *JobBuilder {
	b.job.CreatedAt = t
	return b
}

// Build returns the constructed Job.
func (b *JobBuilder) Build() *model.Job {
	return b.job
}
