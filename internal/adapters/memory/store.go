// Package memory is an in-process implementation of every repository port.
// It backs the test suites and APP_ENV=development runs without Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

type lifecycleKey struct{ domain, signature string }

type quotaKey struct{ account, domain, day string }

type jobRow struct {
	job domain.Job
	sub domain.Submission
}

type Store struct {
	mu sync.Mutex

	runs        map[string]domain.AuditRun
	runOrder    []string
	issues      map[string]domain.Issue
	issuesByRun map[string][]string
	lifecycle   map[lifecycleKey]domain.LifecycleRecord
	quota       map[quotaKey]int
	jobs        map[string]*jobRow
	jobOrder    []string
}

func New() *Store {
	return &Store{
		runs:        map[string]domain.AuditRun{},
		issues:      map[string]domain.Issue{},
		issuesByRun: map[string][]string{},
		lifecycle:   map[lifecycleKey]domain.LifecycleRecord{},
		quota:       map[quotaKey]int{},
		jobs:        map[string]*jobRow{},
	}
}

var (
	_ ports.AuditRepository     = (*Store)(nil)
	_ ports.LifecycleRepository = (*Store)(nil)
	_ ports.QuotaRepository     = (*Store)(nil)
	_ ports.JobRepository       = (*Store)(nil)
)

func dayKey(t time.Time) string { return t.UTC().Format(time.DateOnly) }

// reconcileTx stages writes and applies them only when fn succeeds. The
// store mutex is held for the whole unit of work.
type reconcileTx struct {
	s         *Store
	lifecycle map[lifecycleKey]domain.LifecycleRecord
	runs      []domain.AuditRun
	issues    []domain.Issue
}

func (tx *reconcileTx) EnsureLifecycle(ctx context.Context, domainName, signature string, now time.Time) (domain.LifecycleRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.LifecycleRecord{}, err
	}
	k := lifecycleKey{domainName, signature}
	if rec, ok := tx.lifecycle[k]; ok {
		return rec, nil
	}
	if rec, ok := tx.s.lifecycle[k]; ok {
		return rec, nil
	}
	rec := domain.LifecycleRecord{
		Domain:    domainName,
		Signature: signature,
		State:     domain.StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	tx.lifecycle[k] = rec
	return rec, nil
}

func (tx *reconcileTx) InsertRun(ctx context.Context, run domain.AuditRun) error {
	if _, dup := tx.s.runs[run.ID]; dup {
		return domain.ErrConflict
	}
	tx.runs = append(tx.runs, run)
	return ctx.Err()
}

func (tx *reconcileTx) InsertIssues(ctx context.Context, issues []domain.Issue) error {
	tx.issues = append(tx.issues, issues...)
	return ctx.Err()
}

func (s *Store) WithinReconcileTx(ctx context.Context, fn func(tx ports.ReconcileTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &reconcileTx{s: s, lifecycle: map[lifecycleKey]domain.LifecycleRecord{}}
	if err := fn(tx); err != nil {
		return err
	}
	for k, rec := range tx.lifecycle {
		s.lifecycle[k] = rec
	}
	for _, run := range tx.runs {
		s.runs[run.ID] = run
		s.runOrder = append(s.runOrder, run.ID)
	}
	for _, is := range tx.issues {
		s.issues[is.ID] = is
		s.issuesByRun[is.AuditID] = append(s.issuesByRun[is.AuditID], is.ID)
	}
	return nil
}

func (s *Store) GetRun(ctx context.Context, auditID string) (domain.AuditRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[auditID]
	if !ok {
		return domain.AuditRun{}, domain.ErrNotFound
	}
	return run, nil
}

func (s *Store) ListIssues(ctx context.Context, auditID string) ([]domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[auditID]; !ok {
		return nil, domain.ErrNotFound
	}
	return s.issuesOf(auditID), nil
}

func (s *Store) issuesOf(auditID string) []domain.Issue {
	ids := s.issuesByRun[auditID]
	out := make([]domain.Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.issues[id])
	}
	return out
}

func (s *Store) GetIssue(ctx context.Context, issueID string) (domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	is, ok := s.issues[issueID]
	if !ok {
		return domain.Issue{}, domain.ErrNotFound
	}
	return is, nil
}

func (s *Store) ListDomainIssues(ctx context.Context, accountID, domainName string) ([]domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Issue
	for _, id := range s.runOrder {
		run := s.runs[id]
		if run.AccountID != accountID || run.Domain != domainName {
			continue
		}
		out = append(out, s.issuesOf(id)...)
	}
	return out, nil
}

func (s *Store) AccountHasDomain(ctx context.Context, accountID, domainName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, run := range s.runs {
		if run.AccountID == accountID && run.Domain == domainName {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) GetLifecycle(ctx context.Context, domainName, signature string) (domain.LifecycleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lifecycle[lifecycleKey{domainName, signature}]
	if !ok {
		return domain.LifecycleRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *Store) CompareAndSetLifecycle(ctx context.Context, expected domain.LifecycleRecord, next domain.Status, now time.Time) (domain.LifecycleRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.LifecycleRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := lifecycleKey{expected.Domain, expected.Signature}
	rec, ok := s.lifecycle[k]
	if !ok {
		return domain.LifecycleRecord{}, domain.ErrNotFound
	}
	if rec.Version != expected.Version {
		return domain.LifecycleRecord{}, domain.ErrConflict
	}
	rec.State = next
	rec.Version++
	rec.UpdatedAt = now
	s.lifecycle[k] = rec

	for id, is := range s.issues {
		if is.Domain == rec.Domain && is.Signature == rec.Signature {
			is.Status = next
			s.issues[id] = is
		}
	}
	return rec, nil
}
