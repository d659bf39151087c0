package ports

import (
	"context"
	"time"

	"contentaudit/internal/domain"
)

// Reconciler turns a detection batch into a persisted audit run.
type Reconciler interface {
	Reconcile(ctx context.Context, sub domain.Submission) (domain.AuditRun, []domain.Issue, error)
}

// TransitionRequest targets either an issue id or a (domain, signature) key.
// Expected, when set, is the state the caller last saw.
type TransitionRequest struct {
	IssueID   string
	Domain    string
	Signature string
	Target    domain.Status
	Expected  domain.Status
}

type BulkRequest struct {
	IssueIDs []string
	Target   domain.Status
}

type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

type BulkResult struct {
	UpdatedCount int           `json:"updatedCount"`
	UpdatedIDs   []string      `json:"updatedIds"`
	SkippedIDs   []string      `json:"skippedIds"`
	Failed       []BulkFailure `json:"failed,omitempty"`
}

// Lifecycle applies user dispositions.
type Lifecycle interface {
	Transition(ctx context.Context, req TransitionRequest) (domain.LifecycleRecord, error)
	TransitionIssue(ctx context.Context, req TransitionRequest) (domain.Issue, error)
	BulkTransition(ctx context.Context, req BulkRequest) (BulkResult, error)
}

// Scores computes health scores for a run or a domain history.
type Scores interface {
	ForAudit(ctx context.Context, auditID string) (domain.HealthScore, error)
	ForDomain(ctx context.Context, accountID, domainName string) (domain.HealthScore, error)
}

// Quotas gates audit starts per plan tier.
type Quotas interface {
	CheckAndConsume(ctx context.Context, accountID, domainName string, tier domain.Tier) domain.QuotaDecision
	Usage(ctx context.Context, accountID, domainName string, tier domain.Tier) (domain.QuotaUsage, error)
	History(ctx context.Context, accountID, domainName string, days int) ([]domain.DailyCount, error)
}

// Clock is injected so day boundaries are testable.
type Clock func() time.Time
