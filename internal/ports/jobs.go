package ports

import (
	"context"

	"contentaudit/internal/domain"
)

type ReconcileJob struct {
	ID string
}

// JobRepository supports queueing submissions and claiming them for
// reconciliation.
type JobRepository interface {
	EnqueueJob(ctx context.Context, sub domain.Submission) (jobID string, err error)
	ClaimNextJob(ctx context.Context) (job ReconcileJob, found bool, err error)
	StartJob(ctx context.Context, jobID string) error
	JobSubmission(ctx context.Context, jobID string) (domain.Submission, error)
	MarkJobCompleted(ctx context.Context, jobID, auditID string) error
	MarkJobFailed(ctx context.Context, jobID string, reason string) error
	GetJob(ctx context.Context, jobID string) (domain.Job, error)
}
