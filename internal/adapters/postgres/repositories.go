package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

var (
	_ ports.AuditRepository     = (*DB)(nil)
	_ ports.LifecycleRepository = (*DB)(nil)
)

const issueColumns = `id, audit_id, domain, page_url, category, description, evidence, suggested_fix, severity, signature, status, created_at`

// WithinReconcileTx runs fn in one transaction. Lifecycle rows touched by
// EnsureLifecycle stay locked until commit.
func (db *DB) WithinReconcileTx(ctx context.Context, fn func(tx ports.ReconcileTx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()
	return fn(&reconcileTx{tx: tx})
}

type reconcileTx struct {
	tx pgx.Tx
}

// EnsureLifecycle returns the record for (domain, signature), creating it as
// active when absent. The no-op update on conflict takes the row lock.
func (r *reconcileTx) EnsureLifecycle(ctx context.Context, domainName, signature string, now time.Time) (domain.LifecycleRecord, error) {
	rec := domain.LifecycleRecord{Domain: domainName, Signature: signature}
	err := r.tx.QueryRow(ctx, `
		INSERT INTO lifecycle_records (domain, signature, state, version, created_at, updated_at)
		VALUES ($1, $2, 'active', 1, $3, $3)
		ON CONFLICT (domain, signature) DO UPDATE SET domain = EXCLUDED.domain
		RETURNING state, version, created_at, updated_at
	`, domainName, signature, now).Scan(&rec.State, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (r *reconcileTx) InsertRun(ctx context.Context, run domain.AuditRun) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO audit_runs (id, account_id, domain, pages_scanned, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.AccountID, run.Domain, run.PagesScanned, run.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("audit run %s: %w", run.ID, domain.ErrConflict)
	}
	return err
}

func (r *reconcileTx) InsertIssues(ctx context.Context, issues []domain.Issue) error {
	if len(issues) == 0 {
		return nil
	}
	_, err := r.tx.CopyFrom(ctx,
		pgx.Identifier{"issues"},
		[]string{"id", "audit_id", "domain", "page_url", "category", "description", "evidence", "suggested_fix", "severity", "signature", "status", "created_at"},
		pgx.CopyFromSlice(len(issues), func(i int) ([]any, error) {
			is := issues[i]
			return []any{
				is.ID, is.AuditID, is.Domain, is.PageURL, is.Category, is.Description,
				is.Evidence, is.SuggestedFix, string(is.Severity), is.Signature, string(is.Status), is.CreatedAt,
			}, nil
		}),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("issues: %w", domain.ErrConflict)
	}
	return err
}

func (db *DB) GetRun(ctx context.Context, auditID string) (domain.AuditRun, error) {
	var run domain.AuditRun
	err := db.Pool.QueryRow(ctx, `
		SELECT id, account_id, domain, pages_scanned, created_at
		FROM audit_runs WHERE id = $1
	`, auditID).Scan(&run.ID, &run.AccountID, &run.Domain, &run.PagesScanned, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return run, domain.ErrNotFound
	}
	return run, err
}

func (db *DB) ListIssues(ctx context.Context, auditID string) ([]domain.Issue, error) {
	if _, err := db.GetRun(ctx, auditID); err != nil {
		return nil, err
	}
	rows, err := db.Pool.Query(ctx, `SELECT `+issueColumns+` FROM issues WHERE audit_id = $1 ORDER BY seq`, auditID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanIssue)
}

func (db *DB) GetIssue(ctx context.Context, issueID string) (domain.Issue, error) {
	rows, err := db.Pool.Query(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = $1`, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	is, err := pgx.CollectExactlyOneRow(rows, scanIssue)
	if errors.Is(err, pgx.ErrNoRows) {
		return is, domain.ErrNotFound
	}
	return is, err
}

func (db *DB) ListDomainIssues(ctx context.Context, accountID, domainName string) ([]domain.Issue, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT i.id, i.audit_id, i.domain, i.page_url, i.category, i.description, i.evidence,
		       i.suggested_fix, i.severity, i.signature, i.status, i.created_at
		FROM issues i
		JOIN audit_runs r ON r.id = i.audit_id
		WHERE r.account_id = $1 AND r.domain = $2
		ORDER BY r.created_at, r.id, i.seq
	`, accountID, domainName)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanIssue)
}

func (db *DB) AccountHasDomain(ctx context.Context, accountID, domainName string) (bool, error) {
	var ok bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM audit_runs WHERE account_id = $1 AND domain = $2)
	`, accountID, domainName).Scan(&ok)
	return ok, err
}

func scanIssue(row pgx.CollectableRow) (domain.Issue, error) {
	var is domain.Issue
	err := row.Scan(&is.ID, &is.AuditID, &is.Domain, &is.PageURL, &is.Category, &is.Description,
		&is.Evidence, &is.SuggestedFix, &is.Severity, &is.Signature, &is.Status, &is.CreatedAt)
	return is, err
}

func (db *DB) GetLifecycle(ctx context.Context, domainName, signature string) (domain.LifecycleRecord, error) {
	rec := domain.LifecycleRecord{Domain: domainName, Signature: signature}
	err := db.Pool.QueryRow(ctx, `
		SELECT state, version, created_at, updated_at
		FROM lifecycle_records WHERE domain = $1 AND signature = $2
	`, domainName, signature).Scan(&rec.State, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, domain.ErrNotFound
	}
	return rec, err
}

// CompareAndSetLifecycle bumps the record only while its version matches, then
// rewrites the status of every issue row carrying the key.
func (db *DB) CompareAndSetLifecycle(ctx context.Context, expected domain.LifecycleRecord, next domain.Status, now time.Time) (rec domain.LifecycleRecord, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return rec, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		err = tx.Commit(ctx)
	}()

	rec = domain.LifecycleRecord{Domain: expected.Domain, Signature: expected.Signature}
	err = tx.QueryRow(ctx, `
		UPDATE lifecycle_records
		SET state = $3, version = version + 1, updated_at = $5
		WHERE domain = $1 AND signature = $2 AND version = $4
		RETURNING state, version, created_at, updated_at
	`, expected.Domain, expected.Signature, string(next), expected.Version, now).
		Scan(&rec.State, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM lifecycle_records WHERE domain = $1 AND signature = $2)
		`, expected.Domain, expected.Signature).Scan(&exists); err != nil {
			return rec, err
		}
		if !exists {
			err = domain.ErrNotFound
			return rec, err
		}
		err = fmt.Errorf("lifecycle %s/%s changed since version %d: %w", expected.Domain, expected.Signature, expected.Version, domain.ErrConflict)
		return rec, err
	}
	if err != nil {
		return rec, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE issues SET status = $3 WHERE domain = $1 AND signature = $2
	`, expected.Domain, expected.Signature, string(next)); err != nil {
		return rec, err
	}
	return rec, nil
}
