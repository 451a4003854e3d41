// Package queue contains pure policy helpers for the job queue: backlog
// health derivation from stats snapshots.
package queue

import (
	"time"

	"github.com/openscale/jobforge/internal/domain/model"
)

// HealthThresholds configure when queued-job wait times degrade the health
// signal.
type HealthThresholds struct {
	DegradedAfter   time.Duration
	BackloggedAfter time.Duration
}

// DefaultHealthThresholds mirror sensible operator expectations: a minute of
// waiting is worth a look, five minutes means the pool is not keeping up.
func DefaultHealthThresholds() HealthThresholds {
	return HealthThresholds{
		DegradedAfter:   time.Minute,
		BackloggedAfter: 5 * time.Minute,
	}
}

// Sanitize enforces positive, ordered thresholds.
func (h *HealthThresholds) Sanitize() {
	def := DefaultHealthThresholds()
	if h.DegradedAfter <= 0 {
		h.DegradedAfter = def.DegradedAfter
	}
	if h.BackloggedAfter <= 0 {
		h.BackloggedAfter = def.BackloggedAfter
	}
	if h.BackloggedAfter < h.DegradedAfter {
		h.BackloggedAfter = h.DegradedAfter
	}
}

// DeriveHealth maps a stats snapshot to a qualitative health level. It is a
// pure function: no queued jobs is healthy regardless of the rest of the
// snapshot, otherwise the oldest queued wait is compared to the thresholds.
func DeriveHealth(stats *model.QueueStats, thresholds HealthThresholds) model.QueueHealth {
	health := model.QueueHealth{Level: model.HealthLevelHealthy}
	if stats == nil || stats.CountsByStatus[model.JobStatusQueued] == 0 {
		return health
	}

	health.OldestWaitMs = stats.OldestWaitMs
	oldest := time.Duration(stats.OldestWaitMs) * time.Millisecond
	switch {
	case oldest > thresholds.BackloggedAfter:
		health.Level = model.HealthLevelBacklogged
	case oldest > thresholds.DegradedAfter:
		health.Level = model.HealthLevelDegraded
	}
	return health
}
