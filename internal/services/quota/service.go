// Package quota enforces plan-tier limits on audit starts.
//
// Two independent limits apply: audits per (account, domain, UTC day) and
// distinct domains ever audited per account. Days are UTC calendar days, not
// a rolling 24h window, so a user in another timezone can see the limit
// reset mid-afternoon. Store failures fail open: the audit is allowed and the
// failure is logged and counted.
package quota

import (
	"context"
	"expvar"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

const maxHistoryDays = 31

type Enforcer struct {
	counters  ports.QuotaRepository
	log       *slog.Logger
	now       ports.Clock
	failOpens atomic.Int64
}

func New(counters ports.QuotaRepository, log *slog.Logger) *Enforcer {
	return &Enforcer{counters: counters, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (e *Enforcer) WithClock(c ports.Clock) *Enforcer {
	e.now = c
	return e
}

// Process-wide fail-open counters, served on /debug/vars.
var (
	failOpenTotal = expvar.NewInt("contentaudit_quota_fail_open_total")
	failOpenByOp  = expvar.NewMap("contentaudit_quota_fail_open_by_op")
)

// FailOpenCount reports how many checks this enforcer let through on store
// errors.
func (e *Enforcer) FailOpenCount() int64 { return e.failOpens.Load() }

func (e *Enforcer) failOpen(op, accountID, domainName string, err error) {
	e.failOpens.Add(1)
	failOpenTotal.Add(1)
	failOpenByOp.Add(op, 1)
	e.log.Warn("quota store error, failing open", "op", op, "account", accountID, "domain", domainName, "err", err)
}

// CheckAndConsume decides whether a new audit of domainName may start and,
// when it may, records it. Callers pass a normalized domain. The check and
// the increment are one store operation, so concurrent starts cannot all pass
// on the same stale count.
func (e *Enforcer) CheckAndConsume(ctx context.Context, accountID, domainName string, tier domain.Tier) domain.QuotaDecision {
	dec := domain.QuotaDecision{Allowed: true, Limit: tier.MaxAuditsPerDay}

	// Unlimited tiers skip the counter. A finite domain limit still needs the
	// row, since registration is derived from counters.
	if tier.MaxAuditsPerDay == domain.Unlimited && tier.MaxDomains == domain.Unlimited {
		return dec
	}

	out, err := e.counters.ConsumeQuota(ctx, ports.QuotaClaim{
		AccountID:   accountID,
		Domain:      domainName,
		Day:         e.now().UTC(),
		DailyLimit:  tier.MaxAuditsPerDay,
		DomainLimit: tier.MaxDomains,
	})
	if err != nil {
		e.failOpen("consume", accountID, domainName, err)
		dec.FailOpen = true
		return dec
	}
	switch {
	case out.Allowed:
		if tier.MaxAuditsPerDay != domain.Unlimited {
			dec.Used = out.Used
		}
	case out.Reason == domain.QuotaDomainLimit:
		return domain.QuotaDecision{Allowed: false, Reason: domain.QuotaDomainLimit, Used: out.Used, Limit: tier.MaxDomains}
	default:
		return domain.QuotaDecision{Allowed: false, Reason: domain.QuotaDailyLimit, Used: out.Used, Limit: tier.MaxAuditsPerDay}
	}
	return dec
}

// Usage reports today's consumption for a domain and the account's domain
// footprint. ResetAt is the next UTC midnight, informational only.
func (e *Enforcer) Usage(ctx context.Context, accountID, domainName string, tier domain.Tier) (domain.QuotaUsage, error) {
	if strings.TrimSpace(accountID) == "" {
		return domain.QuotaUsage{}, domain.Invalid("account_id", "required")
	}
	now := e.now().UTC()
	u := domain.QuotaUsage{
		Limit:       tier.MaxAuditsPerDay,
		DomainLimit: tier.MaxDomains,
		ResetAt:     NextReset(now),
	}
	var err error
	if domainName != "" {
		if u.Today, err = e.counters.QuotaCount(ctx, accountID, domainName, now); err != nil {
			return domain.QuotaUsage{}, err
		}
	}
	if u.Domains, err = e.counters.CountDomains(ctx, accountID); err != nil {
		return domain.QuotaUsage{}, err
	}
	return u, nil
}

// History returns per-day counts for the last days UTC days, today included.
func (e *Enforcer) History(ctx context.Context, accountID, domainName string, days int) ([]domain.DailyCount, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, domain.Invalid("account_id", "required")
	}
	if domainName == "" {
		return nil, domain.Invalid("domain", "required")
	}
	if days < 1 {
		days = 1
	}
	if days > maxHistoryDays {
		days = maxHistoryDays
	}
	to := e.now().UTC()
	from := to.AddDate(0, 0, -(days - 1))
	return e.counters.QuotaHistory(ctx, accountID, domainName, from, to)
}

// NextReset is the first UTC midnight strictly after t.
func NextReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
