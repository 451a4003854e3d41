package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/openscale/jobforge/internal/data/pgxutil"
	"github.com/openscale/jobforge/internal/domain/model"
)

// GetByID retrieves a job by its ID.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		job, err = collectJobFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListByOwner returns all jobs belonging to an owner, newest first.
func (r *JobRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Job, error) {
	var jobs []*model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM jobs
			WHERE owner_id = $1
			ORDER BY created_at DESC
		`, ownerID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			job, scanErr := scanJobFromRow(rows)
			if scanErr != nil {
				return scanErr
			}
			jobs = append(jobs, job)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs by owner: %w", err)
	}
	return jobs, nil
}

// Stats aggregates queue-wide counts, waits, and completion throughput over
// the given rolling window.
func (r *JobRepo) Stats(ctx context.Context, window time.Duration) (*model.QueueStats, error) {
	if window <= 0 {
		return nil, errors.New("stats window must be positive")
	}

	currentTime := r.timeProvider.Now().UTC()
	windowStart := currentTime.Add(-window)

	var (
		queued, running, completed, failed, cancelled int
		avgWaitMs, oldestWaitMs                       int64
		completedInWindow                             int64
	)
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*) FILTER (WHERE status = 'queued')    AS queued,
    count(*) FILTER (WHERE status = 'running')   AS running,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed,
    count(*) FILTER (WHERE status = 'cancelled') AS cancelled,
    COALESCE((avg(extract(epoch FROM $1::timestamptz - created_at)) FILTER (WHERE status = 'queued') * 1000)::bigint, 0) AS avg_wait_ms,
    COALESCE((max(extract(epoch FROM $1::timestamptz - created_at)) FILTER (WHERE status = 'queued') * 1000)::bigint, 0) AS oldest_wait_ms,
    count(*) FILTER (WHERE status = 'completed' AND completed_at >= $2) AS completed_in_window
  FROM jobs
  `, currentTime, windowStart).Scan(
		&queued,
		&running,
		&completed,
		&failed,
		&cancelled,
		&avgWaitMs,
		&oldestWaitMs,
		&completedInWindow,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue stats: %w", err)
	}

	return &model.QueueStats{
		CountsByStatus: map[model.JobStatus]int{
			model.JobStatusQueued:    queued,
			model.JobStatusRunning:   running,
			model.JobStatusCompleted: completed,
			model.JobStatusFailed:    failed,
			model.JobStatusCancelled: cancelled,
		},
		AvgWaitMs:        avgWaitMs,
		OldestWaitMs:     oldestWaitMs,
		ThroughputPerMin: float64(completedInWindow) / window.Minutes(),
	}, nil
}
