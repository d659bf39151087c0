package ports

import (
	"context"
	"time"

	"contentaudit/internal/domain"
)

// ReconcileTx is the unit of work a reconciliation runs in. Lifecycle rows
// returned by EnsureLifecycle stay locked until the transaction ends, so a
// concurrent transition cannot slip between the read and the issue insert.
type ReconcileTx interface {
	EnsureLifecycle(ctx context.Context, domainName, signature string, now time.Time) (domain.LifecycleRecord, error)
	InsertRun(ctx context.Context, run domain.AuditRun) error
	InsertIssues(ctx context.Context, issues []domain.Issue) error
}

// AuditRepository persists audit runs and their write-once issue rows.
type AuditRepository interface {
	WithinReconcileTx(ctx context.Context, fn func(tx ReconcileTx) error) error
	GetRun(ctx context.Context, auditID string) (domain.AuditRun, error)
	ListIssues(ctx context.Context, auditID string) ([]domain.Issue, error)
	GetIssue(ctx context.Context, issueID string) (domain.Issue, error)
	// ListDomainIssues returns every issue of the account's runs for a
	// domain, oldest run first.
	ListDomainIssues(ctx context.Context, accountID, domainName string) ([]domain.Issue, error)
	// AccountHasDomain reports whether the account owns at least one run on
	// the domain.
	AccountHasDomain(ctx context.Context, accountID, domainName string) (bool, error)
}

// LifecycleRepository is the durable (domain, signature) -> state memory.
type LifecycleRepository interface {
	GetLifecycle(ctx context.Context, domainName, signature string) (domain.LifecycleRecord, error)
	// CompareAndSetLifecycle moves the record to next only if its version
	// still equals expected.Version, and re-materializes the status of every
	// issue row sharing the key. A stale version yields domain.ErrConflict.
	CompareAndSetLifecycle(ctx context.Context, expected domain.LifecycleRecord, next domain.Status, now time.Time) (domain.LifecycleRecord, error)
}

// QuotaClaim asks to record one audit start. A limit of domain.Unlimited
// disables that check.
type QuotaClaim struct {
	AccountID   string
	Domain      string
	Day         time.Time
	DailyLimit  int
	DomainLimit int
}

// QuotaOutcome reports a claim. On denial Used is the count the limit was
// checked against; on success it is the day's count after the claim.
type QuotaOutcome struct {
	Allowed bool
	Reason  domain.QuotaReason
	Used    int
}

// QuotaRepository keeps per (account, domain, UTC day) audit counters.
type QuotaRepository interface {
	QuotaCount(ctx context.Context, accountID, domainName string, day time.Time) (int, error)
	// ConsumeQuota checks both limits and increments the day counter as one
	// atomic step per account, so concurrent claims never overshoot a limit.
	ConsumeQuota(ctx context.Context, claim QuotaClaim) (QuotaOutcome, error)
	CountDomains(ctx context.Context, accountID string) (int, error)
	HasDomain(ctx context.Context, accountID, domainName string) (bool, error)
	QuotaHistory(ctx context.Context, accountID, domainName string, from, to time.Time) ([]domain.DailyCount, error)
}
