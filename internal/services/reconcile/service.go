// Package reconcile merges freshly detected issues with the lifecycle store.
//
// A signature seen for the first time on a domain is registered as active.
// A known signature carries its current state onto the new issue row, even
// when that state is ignored or resolved. Signatures missing from a batch are
// never touched: absence is not resolution.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/fingerprint"
)

type Engine struct {
	audits ports.AuditRepository
	log    *slog.Logger
	now    ports.Clock
}

func New(audits ports.AuditRepository, log *slog.Logger) *Engine {
	return &Engine{audits: audits, log: log, now: time.Now}
}

// WithClock overrides the time source.
func (e *Engine) WithClock(c ports.Clock) *Engine {
	e.now = c
	return e
}

// Reconcile persists sub as a new audit run. Any store failure aborts the
// whole run; an unreachable store is never read as "no history".
func (e *Engine) Reconcile(ctx context.Context, sub domain.Submission) (domain.AuditRun, []domain.Issue, error) {
	if err := Validate(&sub); err != nil {
		return domain.AuditRun{}, nil, err
	}

	now := e.now().UTC()
	run := domain.AuditRun{
		ID:           uuid.New().String(),
		AccountID:    sub.AccountID,
		Domain:       sub.Domain,
		PagesScanned: sub.PagesScanned,
		CreatedAt:    now,
	}
	fresh := collapse(sub.Issues)

	var issues []domain.Issue
	err := e.audits.WithinReconcileTx(ctx, func(tx ports.ReconcileTx) error {
		// Lock in signature order so concurrent runs cannot deadlock.
		states := make(map[string]domain.Status, len(fresh))
		for _, sig := range sortedSignatures(fresh) {
			rec, err := tx.EnsureLifecycle(ctx, run.Domain, sig, now)
			if err != nil {
				return fmt.Errorf("lifecycle %s: %w", sig, err)
			}
			states[sig] = rec.State
		}
		issues = make([]domain.Issue, 0, len(fresh))
		for _, d := range fresh {
			issues = append(issues, domain.Issue{
				ID:           uuid.New().String(),
				AuditID:      run.ID,
				Domain:       run.Domain,
				PageURL:      d.raw.PageURL,
				Category:     d.raw.Category,
				Description:  d.raw.Description,
				Evidence:     d.raw.Evidence,
				SuggestedFix: d.raw.SuggestedFix,
				Severity:     d.raw.Severity,
				Signature:    d.signature,
				Status:       states[d.signature],
				CreatedAt:    now,
			})
		}
		if err := tx.InsertRun(ctx, run); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		if err := tx.InsertIssues(ctx, issues); err != nil {
			return fmt.Errorf("insert issues: %w", err)
		}
		return nil
	})
	if err != nil {
		e.log.Error("reconcile failed", "account", sub.AccountID, "domain", sub.Domain, "issues", len(fresh), "err", err)
		return domain.AuditRun{}, nil, fmt.Errorf("reconcile %s: %w", sub.Domain, err)
	}

	e.log.Info("audit reconciled", "audit", run.ID, "domain", run.Domain, "issues", len(issues), "carried", countCarried(issues))
	return run, issues, nil
}

type detection struct {
	raw       domain.RawIssue
	signature string
}

// collapse fingerprints a batch and keeps one detection per signature, the
// most severe one, in first-seen order.
func collapse(raw []domain.RawIssue) []detection {
	index := make(map[string]int, len(raw))
	out := make([]detection, 0, len(raw))
	for _, ri := range raw {
		sig := fingerprint.ForIssue(ri)
		if i, ok := index[sig]; ok {
			if ri.Severity.Rank() > out[i].raw.Severity.Rank() {
				out[i].raw = ri
			}
			continue
		}
		index[sig] = len(out)
		out = append(out, detection{raw: ri, signature: sig})
	}
	return out
}

func sortedSignatures(ds []detection) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.signature
	}
	sort.Strings(out)
	return out
}

// Validate normalizes sub in place and rejects it with a ValidationError
// naming the first bad field. Reconcile runs it too, so queued batches are
// checked again when the worker picks them up.
func Validate(sub *domain.Submission) error {
	sub.AccountID = strings.TrimSpace(sub.AccountID)
	if sub.AccountID == "" {
		return domain.Invalid("account_id", "required")
	}
	d, err := domain.RegistrableDomain(sub.Domain)
	if err != nil {
		return err
	}
	sub.Domain = d
	if sub.PagesScanned < 0 {
		return domain.Invalid("pages_scanned", "must not be negative")
	}
	for i := range sub.Issues {
		ri := &sub.Issues[i]
		ri.Severity = domain.Severity(strings.ToLower(strings.TrimSpace(string(ri.Severity))))
		if !ri.Severity.Valid() {
			return domain.Invalid(fmt.Sprintf("issues[%d].severity", i), fmt.Sprintf("unknown severity %q", ri.Severity))
		}
		if strings.TrimSpace(ri.PageURL) == "" {
			return domain.Invalid(fmt.Sprintf("issues[%d].page_url", i), "required")
		}
	}
	return nil
}

func countCarried(issues []domain.Issue) int {
	n := 0
	for _, is := range issues {
		if is.Status != domain.StatusActive {
			n++
		}
	}
	return n
}
