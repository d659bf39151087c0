package memory

import (
	"context"
	"time"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

func (s *Store) QuotaCount(ctx context.Context, accountID, domainName string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quota[quotaKey{accountID, domainName, dayKey(day)}], nil
}

// ConsumeQuota decides and increments under the store mutex.
func (s *Store) ConsumeQuota(ctx context.Context, c ports.QuotaClaim) (ports.QuotaOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ports.QuotaOutcome{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := quotaKey{c.AccountID, c.Domain, dayKey(c.Day)}
	if used := s.quota[k]; c.DailyLimit != domain.Unlimited && used >= c.DailyLimit {
		return ports.QuotaOutcome{Reason: domain.QuotaDailyLimit, Used: used}, nil
	}
	if c.DomainLimit != domain.Unlimited {
		domains := s.domainsOf(c.AccountID)
		if _, known := domains[c.Domain]; !known && len(domains) >= c.DomainLimit {
			return ports.QuotaOutcome{Reason: domain.QuotaDomainLimit, Used: len(domains)}, nil
		}
	}
	s.quota[k]++
	return ports.QuotaOutcome{Allowed: true, Used: s.quota[k]}, nil
}

func (s *Store) CountDomains(ctx context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.domainsOf(accountID)), nil
}

func (s *Store) HasDomain(ctx context.Context, accountID, domainName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.domainsOf(accountID)[domainName]
	return ok, nil
}

// domainsOf needs s.mu held.
func (s *Store) domainsOf(accountID string) map[string]struct{} {
	seen := map[string]struct{}{}
	for k, n := range s.quota {
		if k.account == accountID && n > 0 {
			seen[k.domain] = struct{}{}
		}
	}
	return seen
}

// QuotaHistory returns one entry per UTC day in [from, to], zero-filled.
func (s *Store) QuotaHistory(ctx context.Context, accountID, domainName string, from, to time.Time) ([]domain.DailyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.DailyCount
	for d := truncateDay(from); !d.After(truncateDay(to)); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.DailyCount{Day: d, Count: s.quota[quotaKey{accountID, domainName, dayKey(d)}]})
	}
	return out, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
