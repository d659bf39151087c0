package healthscore

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentaudit/internal/adapters/memory"
	"contentaudit/internal/domain"
	"contentaudit/internal/logging"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/lifecycle"
	"contentaudit/internal/services/reconcile"
)

func issue(page string, sev domain.Severity, st domain.Status) domain.Issue {
	return domain.Issue{PageURL: page, Severity: sev, Status: st, Signature: page + string(sev)}
}

func TestCompute_EmptyIsPerfect(t *testing.T) {
	got := Compute(nil)
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, domain.ScoreMetrics{}, got.Metrics)

	onlyDismissed := []domain.Issue{
		issue("https://a.com/x", domain.SeverityCritical, domain.StatusIgnored),
		issue("https://a.com/y", domain.SeverityCritical, domain.StatusResolved),
	}
	assert.Equal(t, 100, Compute(onlyDismissed).Score)
}

func TestCompute_Formula(t *testing.T) {
	issues := []domain.Issue{
		issue("https://a.com/x", domain.SeverityLow, domain.StatusActive),
		issue("https://a.com/x", domain.SeverityMedium, domain.StatusActive),
		issue("https://a.com/x?ref=1", domain.SeverityCritical, domain.StatusActive),
		issue("https://a.com/x#top", domain.SeverityCritical, domain.StatusActive),
		issue("https://a.com/y", domain.SeverityCritical, domain.StatusActive),
		issue("https://a.com/z", domain.SeverityCritical, domain.StatusIgnored),
	}
	got := Compute(issues)

	// 100 - (1 + 3 + 3*7) - 2*10 = 55
	assert.Equal(t, 55, got.Score)
	assert.Equal(t, domain.ScoreMetrics{
		TotalActive:     5,
		TotalCritical:   3,
		BySeverity:      domain.SeverityCounts{Low: 1, Medium: 1, Critical: 3},
		CriticalPages:   2,
		PagesWithIssues: 2,
	}, got.Metrics)
}

func TestCompute_ClampsAtZero(t *testing.T) {
	var issues []domain.Issue
	for i := 0; i < 20; i++ {
		issues = append(issues, issue(fmt.Sprintf("https://a.com/%d", i), domain.SeverityCritical, domain.StatusActive))
	}
	assert.Equal(t, 0, Compute(issues).Score)
}

func TestCompute_BoundsAndMonotonicity(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sevs := []domain.Severity{domain.SeverityLow, domain.SeverityMedium, domain.SeverityCritical}
	states := []domain.Status{domain.StatusActive, domain.StatusIgnored, domain.StatusResolved}

	for round := 0; round < 200; round++ {
		var issues []domain.Issue
		for i := rng.Intn(30); i > 0; i-- {
			page := fmt.Sprintf("https://a.com/p%d", rng.Intn(5))
			issues = append(issues, issue(page, sevs[rng.Intn(3)], states[rng.Intn(3)]))
		}
		before := Compute(issues).Score
		require.GreaterOrEqual(t, before, 0)
		require.LessOrEqual(t, before, 100)

		page := fmt.Sprintf("https://a.com/p%d", rng.Intn(7))
		after := Compute(append(issues, issue(page, domain.SeverityCritical, domain.StatusActive))).Score
		require.LessOrEqual(t, after, before, "round %d", round)
	}
}

func TestPagePath(t *testing.T) {
	assert.Equal(t, "/x", PagePath("https://a.com/x?utm=1#frag"))
	assert.Equal(t, "/", PagePath("https://a.com"))
	assert.Equal(t, "/", PagePath(""))
	assert.Equal(t, "/docs/", PagePath("http://a.com/docs/"))
}

func TestDedupeBySignature(t *testing.T) {
	old := domain.Issue{ID: "1", Signature: "s1", Severity: domain.SeverityMedium}
	newer := domain.Issue{ID: "2", Signature: "s1", Severity: domain.SeverityMedium}
	lower := domain.Issue{ID: "3", Signature: "s1", Severity: domain.SeverityLow}
	other := domain.Issue{ID: "4", Signature: "s2", Severity: domain.SeverityLow}

	got := DedupeBySignature([]domain.Issue{old, other, newer, lower})
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}

func TestService_SingleAndAggregated(t *testing.T) {
	store := memory.New()
	eng := reconcile.New(store, logging.Discard())
	ctx := context.Background()

	crit := domain.RawIssue{PageURL: "https://a.com/x", Description: "Broken heading order", Severity: domain.SeverityCritical}
	low := domain.RawIssue{PageURL: "https://a.com/y", Description: "Typo in footer", Severity: domain.SeverityLow}
	sub := domain.Submission{AccountID: "acct-1", Domain: "a.com", Issues: []domain.RawIssue{crit, low}}

	run1, _, err := eng.Reconcile(ctx, sub)
	require.NoError(t, err)
	run2, issues2, err := eng.Reconcile(ctx, sub)
	require.NoError(t, err)

	svc := New(store)
	single, err := svc.ForAudit(ctx, run1.ID)
	require.NoError(t, err)
	// 100 - (1 + 7) - 10
	assert.Equal(t, 82, single.Score)

	agg, err := svc.ForDomain(ctx, "acct-1", "a.com")
	require.NoError(t, err)
	assert.Equal(t, single, agg, "redetected issues are not double counted")

	lc := lifecycle.New(store, store, logging.Discard())
	for _, is := range issues2 {
		if is.Severity == domain.SeverityCritical {
			_, err := lc.TransitionIssue(ctx, ports.TransitionRequest{IssueID: is.ID, Target: domain.StatusResolved})
			require.NoError(t, err)
		}
	}
	agg, err = svc.ForDomain(ctx, "acct-1", "a.com")
	require.NoError(t, err)
	assert.Equal(t, 99, agg.Score)

	single, err = svc.ForAudit(ctx, run2.ID)
	require.NoError(t, err)
	assert.Equal(t, 99, single.Score)

	_, err = svc.ForAudit(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = eng.Reconcile(ctx, domain.Submission{AccountID: "acct-1", Domain: "clean.com"})
	require.NoError(t, err)
	clean, err := svc.ForDomain(ctx, "acct-1", "clean.com")
	require.NoError(t, err)
	assert.Equal(t, 100, clean.Score, "audited with no findings")

	_, err = svc.ForDomain(ctx, "acct-1", "never-audited.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.ForDomain(ctx, "acct-2", "a.com")
	assert.ErrorIs(t, err, domain.ErrNotFound, "another account's history is not visible")
}
