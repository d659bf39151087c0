package reconcilerunner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contentaudit/internal/ports"
)

// Processor reconciles the submission behind a job and returns the audit id.
type Processor interface {
	Process(ctx context.Context, jobID string) (auditID string, err error)
}

// ReconcileProcessor loads a queued submission and runs it through the
// reconciliation engine.
type ReconcileProcessor struct {
	Jobs       ports.JobRepository
	Reconciler ports.Reconciler
}

func (p ReconcileProcessor) Process(ctx context.Context, jobID string) (string, error) {
	sub, err := p.Jobs.JobSubmission(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("load submission: %w", err)
	}
	run, _, err := p.Reconciler.Reconcile(ctx, sub)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// Run starts worker goroutines that claim jobs and process them until ctx is
// cancelled.
func Run(ctx context.Context, repo ports.JobRepository, processor Processor, concurrency int, pollInterval time.Duration, log *slog.Logger) {
	if concurrency < 1 {
		return
	}
	jobsCh := make(chan ports.ReconcileJob, concurrency)

	// dispatcher loop
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		defer close(jobsCh)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for {
					job, found, err := repo.ClaimNextJob(ctx)
					if err != nil {
						log.Error("job claim error", "err", err)
						break
					}
					if !found {
						break
					}
					select {
					case jobsCh <- job:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	for i := 0; i < concurrency; i++ {
		go func(idx int) {
			for job := range jobsCh {
				finish(ctx, repo, processor, job.ID, log.With("worker", idx))
			}
		}(i)
	}
}

// ProcessInline starts and processes a specific job synchronously using the
// same processor as the background workers.
func ProcessInline(ctx context.Context, repo ports.JobRepository, processor Processor, jobID string, log *slog.Logger) (string, error) {
	if err := repo.StartJob(ctx, jobID); err != nil {
		return "", err
	}
	return finish(ctx, repo, processor, jobID, log)
}

func finish(ctx context.Context, repo ports.JobRepository, processor Processor, jobID string, log *slog.Logger) (string, error) {
	auditID, err := processor.Process(ctx, jobID)
	if err != nil {
		if merr := repo.MarkJobFailed(context.WithoutCancel(ctx), jobID, err.Error()); merr != nil {
			log.Error("mark failed", "job", jobID, "err", merr)
		}
		log.Warn("job failed", "job", jobID, "err", err)
		return "", err
	}
	if err := repo.MarkJobCompleted(context.WithoutCancel(ctx), jobID, auditID); err != nil {
		log.Error("mark completed", "job", jobID, "err", err)
		return auditID, err
	}
	return auditID, nil
}
