package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/data/pgxutil"
)

// Advisory lock namespace for lease recovery to avoid concurrent sweeps.
const (
	advisoryLockRecoveryMajor   = 1001
	advisoryLockRecoveryExpired = 1 // minor key for RequeueExpired
)

// FinalizeCancelledQueued transitions queued jobs with a pending cancel
// request straight to cancelled, before any worker can claim them.
// Returns the number of jobs finalised.
func (r *JobRepo) FinalizeCancelledQueued(ctx context.Context) (int64, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'cancelled',
		    completed_at = $1,
		    updated_at = $1,
		    lease_expires_at = NULL
		WHERE status = 'queued' AND cancel_requested
	`, currentTime)
	if err != nil {
		return 0, fmt.Errorf("finalize cancelled queued: %w", err)
	}
	return res.RowsAffected()
}

// RequeueExpired requeues running jobs whose lease has expired and returns
// the number of jobs requeued. Persisted progress is untouched, so a later
// claim resumes from the last chunk boundary.
func (r *JobRepo) RequeueExpired(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRecoveryMajor, advisoryLockRecoveryExpired).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			res, err := tx.ExecContext(ctx, `
          UPDATE jobs
          SET status = 'queued', lease_expires_at = NULL, updated_at = $1
          WHERE status = 'running'
            AND lease_expires_at IS NOT NULL
            AND lease_expires_at < $1
        `, currentTime.UTC())
			if err != nil {
				return fmt.Errorf("requeue expired: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// RequeueAllRunning reconciles every running job back to queued. Called once
// at processor start; with a single active processor any running job at that
// point is an orphan from a prior instance.
func (r *JobRepo) RequeueAllRunning(ctx context.Context) (int64, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'queued', lease_expires_at = NULL, updated_at = $1
		WHERE status = 'running'
	`, currentTime)
	if err != nil {
		return 0, fmt.Errorf("requeue running jobs: %w", err)
	}
	return res.RowsAffected()
}

// Release returns a running job to queued, preserving its progress. Used
// during processor shutdown once the current chunk has been persisted.
func (r *JobRepo) Release(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'queued', lease_expires_at = NULL, updated_at = $2
		WHERE id = $1 AND status = 'running'
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("release job: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("release rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// UpdateProgress persists chunk-boundary progress and refreshes the claim
// lease. The update only applies to running jobs and never moves processed
// backwards.
func (r *JobRepo) UpdateProgress(ctx context.Context, update core.ProgressUpdate) (bool, error) {
	if update.LeaseSeconds <= 0 {
		return false, errors.New("lease seconds must be positive")
	}
	if !update.Progress.Consistent() {
		return false, fmt.Errorf("inconsistent progress for job %s", update.JobID)
	}

	progress, err := json.Marshal(update.Progress)
	if err != nil {
		return false, fmt.Errorf("marshal progress: %w", err)
	}

	currentTime := r.timeProvider.Now().UTC()
	leaseExpiresAt := currentTime.Add(time.Duration(update.LeaseSeconds) * time.Second)

	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET progress = $2,
		    lease_expires_at = $3,
		    updated_at = $4
		WHERE id = $1 AND status = 'running'
		  AND COALESCE((progress->>'processed')::int, 0) <= $5
	`, update.JobID, progress, leaseExpiresAt, currentTime, update.Progress.Processed)
	if err != nil {
		return false, fmt.Errorf("update progress: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update progress rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RequestCancel sets the cancel flag on a non-terminal job. Returns false
// when the job is already terminal. Repeated requests are no-ops.
func (r *JobRepo) RequestCancel(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET cancel_requested = TRUE, updated_at = $2
		WHERE id = $1 AND status IN ('queued', 'running')
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("request cancel: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("request cancel rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// MarkCancelled finalises a running job as cancelled at a chunk boundary.
// Progress persisted so far is retained.
func (r *JobRepo) MarkCancelled(ctx context.Context, id string) (bool, error) {
	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'cancelled',
		    completed_at = $2,
		    updated_at = $2,
		    lease_expires_at = NULL
		WHERE id = $1 AND status = 'running'
	`, id, currentTime)
	if err != nil {
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark cancelled rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Complete marks a running job as completed, recording the final progress
// and the aggregate result document.
func (r *JobRepo) Complete(ctx context.Context, params core.CompleteParams) (bool, error) {
	progress, err := json.Marshal(params.Progress)
	if err != nil {
		return false, fmt.Errorf("marshal progress: %w", err)
	}
	result := params.Result
	if len(result) == 0 {
		result = []byte(`{}`)
	}

	currentTime := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'completed',
		    progress = $2,
		    result = $3,
		    completed_at = $4,
		    updated_at = $4,
		    lease_expires_at = NULL,
		    last_error = NULL
		WHERE id = $1 AND status = 'running'
	`, params.JobID, progress, result, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a fatal error on a running job. While retry budget remains
// the job is requeued with a retry delay; once exhausted it is terminally
// failed.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	retryDelay := r.retryDelay()
	currentTime := r.timeProvider.Now()
	retryScheduledAt := currentTime.Add(time.Duration(retryDelay) * time.Second)

	query := `
      UPDATE jobs
      SET
        last_error = $2,
        retry_count = retry_count + 1,
        status = CASE WHEN retry_count >= max_retries THEN 'failed' ELSE 'queued' END,
        completed_at = CASE WHEN retry_count >= max_retries THEN $3::timestamptz ELSE NULL END,
        lease_expires_at = NULL,
        scheduled_at = CASE WHEN retry_count >= max_retries THEN scheduled_at
                            ELSE $4::timestamptz END,
        updated_at = $5
      WHERE id = $1 AND status = 'running'
    `

	res, err := r.DB.ExecContext(ctx, query, id, errMsg, currentTime.UTC(), retryScheduledAt.UTC(), currentTime.UTC())
	if err != nil {
		return false, fmt.Errorf("fail job: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}
