package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/openscale/jobforge/internal/core"
	"github.com/openscale/jobforge/internal/data/pgxutil"
	"github.com/openscale/jobforge/internal/domain/model"
	apperrors "github.com/openscale/jobforge/internal/errors"
)

// notifyChannel is the LISTEN/NOTIFY channel used to wake idle workers when
// a job is inserted.
const notifyChannel = "job_added"

const defaultRetryDelaySeconds = 30

func (r *JobRepo) retryDelay() int {
	if r.cfg.RetryDelaySeconds > 0 {
		return r.cfg.RetryDelaySeconds
	}
	return defaultRetryDelaySeconds
}

// SQL used by ClaimNext to atomically claim the next queued job. The
// correlated subquery keeps owners at their running-job cap out of the
// candidate set; their jobs stay queued until a slot frees up.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM jobs c
    WHERE c.status = 'queued'
      AND NOT c.cancel_requested
      AND c.scheduled_at <= $1
      AND ($2 <= 0 OR (
        SELECT count(*) FROM jobs o
        WHERE o.owner_id = c.owner_id AND o.status = 'running'
      ) < $2)
    ORDER BY c.priority DESC, c.created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE jobs j
  SET
    status = 'running',
    started_at = COALESCE(j.started_at, $3),
    lease_expires_at = $4,
    updated_at = $5
  FROM cte
  WHERE j.id = cte.id
  RETURNING j.id, j.owner_id, j.type, j.priority, j.status, j.scope, j.progress, j.result, j.last_error, j.cancel_requested, j.retry_count, j.max_retries, j.scheduled_at, j.started_at, j.completed_at, j.lease_expires_at, j.created_at, j.updated_at`

// Create validates and inserts a new queued job, notifying idle workers.
func (r *JobRepo) Create(
	ctx context.Context,
	req *model.SubmitJobRequest,
) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("submit job request is required")
	}

	req.Normalize()
	if validateErr := req.Validate(); validateErr != nil {
		return nil, validateErr
	}
	if len(req.Scope) == 0 {
		return nil, errors.New("scope must not be empty")
	}

	scope, err := json.Marshal(req.Scope)
	if err != nil {
		return nil, fmt.Errorf("marshal scope: %w", err)
	}
	progress, err := json.Marshal(model.Progress{Total: len(req.Scope)})
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}

	var job *model.Job
	if txErr := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var insertErr error
			job, insertErr = r.insertJobInTx(ctx, tx, req, scope, progress)
			return insertErr
		},
	}); txErr != nil {
		return nil, txErr
	}

	return job, nil
}

// insertJobInTx inserts a job within a pgx.Tx and returns the created job.
func (r *JobRepo) insertJobInTx(
	ctx context.Context,
	tx pgx.Tx,
	req *model.SubmitJobRequest,
	scope, progress []byte,
) (*model.Job, error) {
	query := `
      INSERT INTO jobs(id, owner_id, type, priority, status, scope, progress, scheduled_at, max_retries)
      VALUES ($1,$2,$3,$4,'queued',$5,$6,$7,$8)
      RETURNING ` + jobColumns

	rows, err := tx.Query(ctx, query,
		uuid.NewString(),
		req.OwnerID,
		req.Type,
		req.Priority.Weight(),
		scope,
		progress,
		r.timeProvider.Now().UTC(),
		*req.MaxRetries,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", apperrors.MapDBError(err))
	}
	job, collectErr := collectJobFromRows(rows)
	rows.Close()
	if collectErr != nil {
		return nil, fmt.Errorf("collect job: %w", collectErr)
	}

	if _, execErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, notifyChannel, job.ID); execErr != nil {
		return nil, fmt.Errorf("send job notification: %w", execErr)
	}

	return job, nil
}

// collectJobFromRows collects a single job from pgx rows using pgx v5 helpers.
func collectJobFromRows(rows pgx.Rows) (*model.Job, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	job, err := scanJobFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return job, nil
}

type jobRowScanner interface {
	Scan(dest ...any) error
}

type jobRowData struct {
	priority                               int
	scope, progress, result                []byte
	lastError                              sql.NullString
	startedAt, completedAt, leaseExpiresAt sql.NullTime
}

func (d *jobRowData) scanInto(scanner jobRowScanner, job *model.Job) error {
	return scanner.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Type,
		&d.priority,
		&job.Status,
		&d.scope,
		&d.progress,
		&d.result,
		&d.lastError,
		&job.CancelRequested,
		&job.RetryCount,
		&job.MaxRetries,
		&job.ScheduledAt,
		&d.startedAt,
		&d.completedAt,
		&d.leaseExpiresAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
}

func (d *jobRowData) apply(job *model.Job) error {
	job.Priority = model.PriorityFromWeight(d.priority)
	if len(d.scope) > 0 {
		if err := json.Unmarshal(d.scope, &job.Scope); err != nil {
			return fmt.Errorf("decode scope: %w", err)
		}
	}
	if len(d.progress) > 0 {
		if err := json.Unmarshal(d.progress, &job.Progress); err != nil {
			return fmt.Errorf("decode progress: %w", err)
		}
	}
	if len(d.result) > 0 {
		job.Result = append(json.RawMessage(nil), d.result...)
	}
	job.LastError = cloneNullableString(d.lastError)
	job.StartedAt = cloneNullableTime(d.startedAt)
	job.CompletedAt = cloneNullableTime(d.completedAt)
	job.LeaseExpiresAt = cloneNullableTime(d.leaseExpiresAt)
	return nil
}

func scanJobFromRow(scanner jobRowScanner) (*model.Job, error) {
	job := &model.Job{}
	var data jobRowData
	if err := data.scanInto(scanner, job); err != nil {
		return nil, err
	}

	if err := data.apply(job); err != nil {
		return nil, err
	}
	return job, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// ClaimNext atomically claims the next queued job for a worker.
// Claim order is priority descending, then submission order.
func (r *JobRepo) ClaimNext(ctx context.Context, params core.ClaimParams) (*model.Job, error) {
	if params.LeaseSeconds <= 0 {
		return nil, errors.New("lease seconds must be positive")
	}

	var job *model.Job
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			leaseExpiresAt := currentTime.Add(time.Duration(params.LeaseSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				claimNextUpdateSQL,
				currentTime.UTC(),
				params.OwnerActiveCap,
				currentTime.UTC(),
				leaseExpiresAt.UTC(),
				currentTime.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("claim job: %w", qerr)
			}
			defer rows.Close()

			j, cerr := collectJobFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoJobsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("claim job: %w", cerr)
			}
			job = j
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoJobsAvailable) {
			return nil, model.ErrNoJobsAvailable
		}
		return nil, err
	}
	return job, nil
}

// WaitForNotification waits for a PostgreSQL notification indicating new jobs are available.
func (r *JobRepo) WaitForNotification(ctx context.Context) error {
	conn, err := r.DB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get conn from pool: %w", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			_ = cerr
		}
	}()

	quoted := pgx.Identifier{notifyChannel}.Sanitize()

	if _, execErr := conn.ExecContext(ctx, "LISTEN "+quoted); execErr != nil {
		return fmt.Errorf("listen %s: %w", notifyChannel, execErr)
	}
	defer func() {
		if _, execErr := conn.ExecContext(context.Background(), "UNLISTEN "+quoted); execErr != nil {
			_ = execErr
		}
	}()

	return conn.Raw(func(dc any) error {
		sc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errors.New("unexpected driver connection type; expected *stdlib.Conn")
		}
		_, notifyErr := sc.Conn().WaitForNotification(ctx)
		return notifyErr
	})
}
