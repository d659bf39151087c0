package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

func (s *Store) EnqueueJob(ctx context.Context, sub domain.Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.New().String()
	s.jobs[id] = &jobRow{
		job: domain.Job{ID: id, Status: domain.JobQueued, QueuedAt: time.Now().UTC()},
		sub: sub,
	}
	s.jobOrder = append(s.jobOrder, id)
	return id, nil
}

// ClaimNextJob hands out the oldest queued job and marks it running.
func (s *Store) ClaimNextJob(ctx context.Context) (ports.ReconcileJob, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.jobOrder {
		row := s.jobs[id]
		if row.job.Status != domain.JobQueued {
			continue
		}
		s.start(row)
		return ports.ReconcileJob{ID: id}, true, nil
	}
	return ports.ReconcileJob{}, false, nil
}

func (s *Store) StartJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if row.job.Status != domain.JobQueued {
		return domain.ErrConflict
	}
	s.start(row)
	return nil
}

func (s *Store) start(row *jobRow) {
	now := time.Now().UTC()
	row.job.Status = domain.JobRunning
	row.job.Attempts++
	if row.job.StartedAt == nil {
		row.job.StartedAt = &now
	}
}

func (s *Store) JobSubmission(ctx context.Context, jobID string) (domain.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return domain.Submission{}, domain.ErrNotFound
	}
	return row.sub, nil
}

func (s *Store) MarkJobCompleted(ctx context.Context, jobID, auditID string) error {
	return s.finish(jobID, domain.JobCompleted, auditID, "")
}

func (s *Store) MarkJobFailed(ctx context.Context, jobID string, reason string) error {
	return s.finish(jobID, domain.JobFailed, "", reason)
}

func (s *Store) finish(jobID string, status domain.JobStatus, auditID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	row.job.Status = status
	row.job.AuditID = auditID
	row.job.Error = reason
	row.job.FinishedAt = &now
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.jobs[jobID]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return row.job, nil
}
