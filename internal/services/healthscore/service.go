package healthscore

import (
	"context"
	"fmt"
	"strings"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

type Service struct {
	audits ports.AuditRepository
}

func New(audits ports.AuditRepository) *Service { return &Service{audits: audits} }

// ForAudit scores the issues of a single run.
func (s *Service) ForAudit(ctx context.Context, auditID string) (domain.HealthScore, error) {
	issues, err := s.audits.ListIssues(ctx, auditID)
	if err != nil {
		return domain.HealthScore{}, fmt.Errorf("list issues for %s: %w", auditID, err)
	}
	return Compute(issues), nil
}

// ForDomain scores the account's whole run history for a domain, counting
// each signature once. A domain the account never audited is ErrNotFound,
// not a perfect score.
func (s *Service) ForDomain(ctx context.Context, accountID, domainName string) (domain.HealthScore, error) {
	if strings.TrimSpace(accountID) == "" {
		return domain.HealthScore{}, domain.Invalid("account_id", "required")
	}
	d, err := domain.RegistrableDomain(domainName)
	if err != nil {
		return domain.HealthScore{}, err
	}
	ok, err := s.audits.AccountHasDomain(ctx, accountID, d)
	if err != nil {
		return domain.HealthScore{}, fmt.Errorf("lookup runs for %s: %w", d, err)
	}
	if !ok {
		return domain.HealthScore{}, domain.ErrNotFound
	}
	issues, err := s.audits.ListDomainIssues(ctx, accountID, d)
	if err != nil {
		return domain.HealthScore{}, fmt.Errorf("list issues for %s: %w", d, err)
	}
	return Compute(DedupeBySignature(issues)), nil
}

// DedupeBySignature keeps one representative per signature: the most severe
// instance, newest run winning ties. Input is expected oldest run first.
// Output keeps first-seen order.
func DedupeBySignature(issues []domain.Issue) []domain.Issue {
	seen := make(map[string]int, len(issues))
	out := make([]domain.Issue, 0, len(issues))
	for _, is := range issues {
		i, ok := seen[is.Signature]
		if !ok {
			seen[is.Signature] = len(out)
			out = append(out, is)
			continue
		}
		if is.Severity.Rank() >= out[i].Severity.Rank() {
			out[i] = is
		}
	}
	return out
}
