package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

var _ ports.JobRepository = (*DB)(nil)

func (db *DB) EnqueueJob(ctx context.Context, sub domain.Submission) (string, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	_, err = db.Pool.Exec(ctx, `INSERT INTO audit_jobs (id, payload) VALUES ($1, $2)`, id, payload)
	return id, err
}

// ClaimNextJob selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNextJob(ctx context.Context) (job ports.ReconcileJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id FROM audit_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE audit_jobs SET status = 'running', started_at = COALESCE(started_at, now()), attempts = attempts + 1 WHERE id = $1
	`, job.ID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

// StartJob moves a specific queued job to running. A job that is missing
// yields ErrNotFound; one already claimed yields ErrConflict.
func (db *DB) StartJob(ctx context.Context, jobID string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE audit_jobs SET status = 'running', started_at = COALESCE(started_at, now()), attempts = attempts + 1
		WHERE id = $1 AND status = 'queued'
	`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := db.GetJob(ctx, jobID); err != nil {
		return err
	}
	return domain.ErrConflict
}

func (db *DB) JobSubmission(ctx context.Context, jobID string) (domain.Submission, error) {
	var (
		sub     domain.Submission
		payload []byte
	)
	err := db.Pool.QueryRow(ctx, `SELECT payload FROM audit_jobs WHERE id = $1`, jobID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return sub, domain.ErrNotFound
	}
	if err != nil {
		return sub, err
	}
	err = json.Unmarshal(payload, &sub)
	return sub, err
}

func (db *DB) MarkJobCompleted(ctx context.Context, jobID, auditID string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, `
		UPDATE audit_jobs SET status = 'completed', audit_id = $2, error = '', finished_at = now() WHERE id = $1
	`, auditID)
}

func (db *DB) MarkJobFailed(ctx context.Context, jobID string, reason string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.finishJob(ctx, jobID, `
		UPDATE audit_jobs SET status = 'failed', error = $2, finished_at = now() WHERE id = $1
	`, reason)
}

func (db *DB) finishJob(ctx context.Context, jobID, query string, arg string) error {
	tag, err := db.Pool.Exec(ctx, query, jobID, arg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (db *DB) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	var (
		job     domain.Job
		auditID *string
		status  string
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT id, status, audit_id, error, attempts, queued_at, started_at, finished_at
		FROM audit_jobs WHERE id = $1
	`, jobID).Scan(&job.ID, &status, &auditID, &job.Error, &job.Attempts, &job.QueuedAt, &job.StartedAt, &job.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, domain.ErrNotFound
	}
	if err != nil {
		return job, err
	}
	job.Status = domain.JobStatus(status)
	if auditID != nil {
		job.AuditID = *auditID
	}
	return job, nil
}
