package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/domain/model"
)

// memStore is an in-memory JobStore mirroring the claim, progress and
// retry semantics of the SQL repository closely enough for pool tests.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.Job
	seq       int
	lastClaim core.ClaimParams
}

func newMemStore() *memStore {
	return &memStore{jobs: make(map[string]*model.Job)}
}

func (s *memStore) add(owner, jobType string, priority model.JobPriority, scopeSize, maxRetries int) *model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	scope := make([]json.RawMessage, scopeSize)
	for i := range scope {
		scope[i] = json.RawMessage(fmt.Sprintf(`{"item":%d}`, i))
	}
	j := &model.Job{
		ID:         fmt.Sprintf("job-%d", s.seq),
		OwnerID:    owner,
		Type:       jobType,
		Priority:   priority,
		Status:     model.JobStatusQueued,
		Scope:      scope,
		Progress:   model.Progress{Total: scopeSize},
		MaxRetries: maxRetries,
		CreatedAt:  time.Now().Add(time.Duration(s.seq) * time.Millisecond),
	}
	s.jobs[j.ID] = j
	return j
}

func (s *memStore) snapshot(id string) model.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.jobs[id]
}

func (s *memStore) setCancelRequested(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].CancelRequested = true
}

func (s *memStore) Create(_ context.Context, _ *model.SubmitJobRequest) (*model.Job, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *memStore) GetByID(_ context.Context, id string) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	cp := *j
	return &cp, nil
}

func (s *memStore) ListByOwner(_ context.Context, owner string) ([]*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Job
	for _, j := range s.jobs {
		if j.OwnerID == owner {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (s *memStore) ClaimNext(_ context.Context, params core.ClaimParams) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastClaim = params

	running := make(map[string]int)
	for _, j := range s.jobs {
		if j.Status == model.JobStatusRunning {
			running[j.OwnerID]++
		}
	}

	var best *model.Job
	now := time.Now()
	for _, j := range s.jobs {
		if j.Status != model.JobStatusQueued || j.CancelRequested || j.ScheduledAt.After(now) {
			continue
		}
		if params.OwnerActiveCap > 0 && running[j.OwnerID] >= params.OwnerActiveCap {
			continue
		}
		if best == nil ||
			j.Priority.Weight() > best.Priority.Weight() ||
			(j.Priority.Weight() == best.Priority.Weight() && j.CreatedAt.Before(best.CreatedAt)) {
			best = j
		}
	}
	if best == nil {
		return nil, model.ErrNoJobsAvailable
	}

	best.Status = model.JobStatusRunning
	started := now
	expires := now.Add(time.Duration(params.LeaseSeconds) * time.Second)
	if best.StartedAt == nil {
		best.StartedAt = &started
	}
	best.LeaseExpiresAt = &expires
	cp := *best
	return &cp, nil
}

func (s *memStore) FinalizeCancelledQueued(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := time.Now()
	for _, j := range s.jobs {
		if j.Status == model.JobStatusQueued && j.CancelRequested {
			j.Status = model.JobStatusCancelled
			j.CompletedAt = &now
			n++
		}
	}
	return n, nil
}

func (s *memStore) RequeueExpired(_ context.Context) (int64, error) { return 0, nil }

func (s *memStore) RequeueAllRunning(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, j := range s.jobs {
		if j.Status == model.JobStatusRunning {
			j.Status = model.JobStatusQueued
			j.LeaseExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (s *memStore) Release(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusRunning {
		return false, nil
	}
	j.Status = model.JobStatusQueued
	j.LeaseExpiresAt = nil
	return true, nil
}

func (s *memStore) UpdateProgress(_ context.Context, update core.ProgressUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[update.JobID]
	if !ok || j.Status != model.JobStatusRunning {
		return false, nil
	}
	if update.Progress.Processed < j.Progress.Processed {
		return false, nil
	}
	j.Progress = update.Progress
	expires := time.Now().Add(time.Duration(update.LeaseSeconds) * time.Second)
	j.LeaseExpiresAt = &expires
	return true, nil
}

func (s *memStore) RequestCancel(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	j.CancelRequested = true
	return true, nil
}

func (s *memStore) MarkCancelled(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusRunning {
		return false, nil
	}
	now := time.Now()
	j.Status = model.JobStatusCancelled
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	return true, nil
}

func (s *memStore) Complete(_ context.Context, params core.CompleteParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[params.JobID]
	if !ok || j.Status != model.JobStatusRunning {
		return false, nil
	}
	now := time.Now()
	j.Status = model.JobStatusCompleted
	j.Progress = params.Progress
	j.Result = params.Result
	j.CompletedAt = &now
	j.LeaseExpiresAt = nil
	j.LastError = nil
	return true, nil
}

func (s *memStore) Fail(_ context.Context, id, errMsg string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.Status != model.JobStatusRunning {
		return false, nil
	}
	msg := errMsg
	j.LastError = &msg
	exhausted := j.RetryCount >= j.MaxRetries
	j.RetryCount++
	j.LeaseExpiresAt = nil
	if exhausted {
		now := time.Now()
		j.Status = model.JobStatusFailed
		j.CompletedAt = &now
	} else {
		// Retries are claimable immediately to keep tests fast.
		j.Status = model.JobStatusQueued
	}
	return true, nil
}

func (s *memStore) Stats(_ context.Context, _ time.Duration) (*model.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.JobStatus]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return &model.QueueStats{CountsByStatus: counts}, nil
}

func (s *memStore) WaitForNotification(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

// stubNotifier satisfies the Subscriber interface with a broadcast channel.
type stubNotifier struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{subs: make(map[chan struct{}]struct{})}
}

func (n *stubNotifier) Subscribe() (func(), <-chan struct{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subs[ch] = struct{}{}
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, ch)
	}, ch
}

func (n *stubNotifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
