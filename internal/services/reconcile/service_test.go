package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentaudit/internal/adapters/memory"
	"contentaudit/internal/domain"
	"contentaudit/internal/logging"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/fingerprint"
)

func altText() domain.RawIssue {
	return domain.RawIssue{
		PageURL:     "https://a.com/x",
		Category:    "accessibility",
		Description: "Missing alt text",
		Evidence:    "img src=...",
		Severity:    domain.SeverityMedium,
	}
}

func submission(issues ...domain.RawIssue) domain.Submission {
	return domain.Submission{AccountID: "acct-1", Domain: "a.com", PagesScanned: 3, Issues: issues}
}

func setState(t *testing.T, store *memory.Store, sig string, target domain.Status) {
	t.Helper()
	ctx := context.Background()
	rec, err := store.GetLifecycle(ctx, "a.com", sig)
	require.NoError(t, err)
	_, err = store.CompareAndSetLifecycle(ctx, rec, target, time.Now())
	require.NoError(t, err)
}

func TestReconcile_NewIssuesAreActive(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())

	run, issues, err := eng.Reconcile(context.Background(), submission(altText()))
	require.NoError(t, err)
	require.Len(t, issues, 1)

	assert.Equal(t, "a.com", run.Domain)
	assert.Equal(t, domain.StatusActive, issues[0].Status)
	assert.Equal(t, run.ID, issues[0].AuditID)
	assert.Equal(t, fingerprint.Signature("https://a.com/x", "Missing alt text", "img src=..."), issues[0].Signature)

	rec, err := store.GetLifecycle(context.Background(), "a.com", issues[0].Signature)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, rec.State)
}

func TestReconcile_ResolvedSurvivesRedetection(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())
	ctx := context.Background()

	_, first, err := eng.Reconcile(ctx, submission(altText()))
	require.NoError(t, err)
	setState(t, store, first[0].Signature, domain.StatusResolved)

	reworded := altText()
	reworded.Description = "missing ALT text."
	_, second, err := eng.Reconcile(ctx, submission(reworded))
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].Signature, second[0].Signature)
	assert.Equal(t, domain.StatusResolved, second[0].Status)
}

func TestReconcile_IgnoredSurvivesRedetection(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())
	ctx := context.Background()

	_, first, err := eng.Reconcile(ctx, submission(altText()))
	require.NoError(t, err)
	setState(t, store, first[0].Signature, domain.StatusIgnored)

	_, second, err := eng.Reconcile(ctx, submission(altText()))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusIgnored, second[0].Status)
}

func TestReconcile_Idempotent(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())
	ctx := context.Background()

	other := altText()
	other.PageURL = "https://a.com/y"
	_, seed, err := eng.Reconcile(ctx, submission(altText(), other))
	require.NoError(t, err)
	setState(t, store, seed[1].Signature, domain.StatusIgnored)

	statuses := func(issues []domain.Issue) map[string]domain.Status {
		m := map[string]domain.Status{}
		for _, is := range issues {
			m[is.Signature] = is.Status
		}
		return m
	}
	_, a, err := eng.Reconcile(ctx, submission(altText(), other))
	require.NoError(t, err)
	_, b, err := eng.Reconcile(ctx, submission(altText(), other))
	require.NoError(t, err)
	assert.Equal(t, statuses(a), statuses(b))
}

func TestReconcile_AbsentSignaturesUntouched(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())
	ctx := context.Background()

	_, first, err := eng.Reconcile(ctx, submission(altText()))
	require.NoError(t, err)
	setState(t, store, first[0].Signature, domain.StatusIgnored)
	before, err := store.GetLifecycle(ctx, "a.com", first[0].Signature)
	require.NoError(t, err)

	_, _, err = eng.Reconcile(ctx, submission())
	require.NoError(t, err)

	after, err := store.GetLifecycle(ctx, "a.com", first[0].Signature)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReconcile_CollapsesDuplicatesKeepingMostSevere(t *testing.T) {
	store := memory.New()
	eng := New(store, logging.Discard())

	low := altText()
	low.Severity = domain.SeverityLow
	crit := altText()
	crit.Description = "Missing alt text!"
	crit.Severity = domain.SeverityCritical

	_, issues, err := eng.Reconcile(context.Background(), submission(low, crit))
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, domain.SeverityCritical, issues[0].Severity)
}

func TestReconcile_Validation(t *testing.T) {
	eng := New(memory.New(), logging.Discard())
	ctx := context.Background()

	bad := altText()
	bad.Severity = "high"
	_, _, err := eng.Reconcile(ctx, submission(bad))
	require.Error(t, err)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "issues[0].severity", ve.Field)

	_, _, err = eng.Reconcile(ctx, domain.Submission{Domain: "a.com"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "account_id", ve.Field)
}

func TestReconcile_NormalizesSeverityAndDomain(t *testing.T) {
	eng := New(memory.New(), logging.Discard())
	is := altText()
	is.Severity = " Critical "
	sub := submission(is)
	sub.Domain = "https://www.A.com/landing"

	run, issues, err := eng.Reconcile(context.Background(), sub)
	require.NoError(t, err)
	assert.Equal(t, "a.com", run.Domain)
	assert.Equal(t, domain.SeverityCritical, issues[0].Severity)
}

type failingAudits struct {
	ports.AuditRepository
}

func (failingAudits) WithinReconcileTx(ctx context.Context, fn func(tx ports.ReconcileTx) error) error {
	return errors.New("connection refused")
}

func TestReconcile_FailsClosedOnStoreError(t *testing.T) {
	eng := New(failingAudits{}, logging.Discard())
	_, issues, err := eng.Reconcile(context.Background(), submission(altText()))
	require.Error(t, err)
	assert.Nil(t, issues)
}
