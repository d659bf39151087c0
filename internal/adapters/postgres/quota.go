package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

var _ ports.QuotaRepository = (*DB)(nil)

func (db *DB) QuotaCount(ctx context.Context, accountID, domainName string, day time.Time) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `
		SELECT count FROM quota_counters WHERE account_id = $1 AND domain = $2 AND day = $3
	`, accountID, domainName, utcDate(day)).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// ConsumeQuota serializes claims of one account on a transaction-scoped
// advisory lock, checks both limits, then bumps the day counter. The upsert
// keeps its own guard so a writer outside the lock still cannot pass the
// daily limit.
func (db *DB) ConsumeQuota(ctx context.Context, c ports.QuotaClaim) (out ports.QuotaOutcome, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return out, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, "quota:"+c.AccountID); err != nil {
		return out, err
	}
	day := utcDate(c.Day)

	var used int
	err = tx.QueryRow(ctx, `
		SELECT count FROM quota_counters WHERE account_id = $1 AND domain = $2 AND day = $3
	`, c.AccountID, c.Domain, day).Scan(&used)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return out, err
	}
	if c.DailyLimit != domain.Unlimited && used >= c.DailyLimit {
		return ports.QuotaOutcome{Reason: domain.QuotaDailyLimit, Used: used}, nil
	}

	if c.DomainLimit != domain.Unlimited {
		var (
			domains int
			known   bool
		)
		if err = tx.QueryRow(ctx, `
			SELECT COUNT(DISTINCT domain), COALESCE(bool_or(domain = $2), false)
			FROM quota_counters WHERE account_id = $1
		`, c.AccountID, c.Domain).Scan(&domains, &known); err != nil {
			return out, err
		}
		if !known && domains >= c.DomainLimit {
			return ports.QuotaOutcome{Reason: domain.QuotaDomainLimit, Used: domains}, nil
		}
	}

	var n int
	err = tx.QueryRow(ctx, `
		INSERT INTO quota_counters (account_id, domain, day, count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (account_id, domain, day) DO UPDATE SET count = quota_counters.count + 1
		WHERE $4::int < 0 OR quota_counters.count < $4::int
		RETURNING count
	`, c.AccountID, c.Domain, day, c.DailyLimit).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.QuotaOutcome{Reason: domain.QuotaDailyLimit, Used: used}, nil
	}
	if err != nil {
		return out, err
	}
	return ports.QuotaOutcome{Allowed: true, Used: n}, nil
}

func (db *DB) CountDomains(ctx context.Context, accountID string) (int, error) {
	var n int
	err := db.Pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT domain) FROM quota_counters WHERE account_id = $1
	`, accountID).Scan(&n)
	return n, err
}

func (db *DB) HasDomain(ctx context.Context, accountID, domainName string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM quota_counters WHERE account_id = $1 AND domain = $2)
	`, accountID, domainName).Scan(&ok)
	return ok, err
}

// QuotaHistory returns one row per day in [from, to], zero-filled.
func (db *DB) QuotaHistory(ctx context.Context, accountID, domainName string, from, to time.Time) ([]domain.DailyCount, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT d::date, COALESCE(q.count, 0)
		FROM generate_series($3::date, $4::date, interval '1 day') AS d
		LEFT JOIN quota_counters q
		  ON q.account_id = $1 AND q.domain = $2 AND q.day = d::date
		ORDER BY d
	`, accountID, domainName, utcDate(from), utcDate(to))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailyCount, error) {
		var dc domain.DailyCount
		err := row.Scan(&dc.Day, &dc.Count)
		dc.Day = dc.Day.UTC()
		return dc, err
	})
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
