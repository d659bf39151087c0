package httpadapter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentaudit/internal/adapters/memory"
	"contentaudit/internal/config"
	"contentaudit/internal/logging"
	"contentaudit/internal/services/healthscore"
	"contentaudit/internal/services/lifecycle"
	"contentaudit/internal/services/quota"
	"contentaudit/internal/services/reconcile"
	"contentaudit/internal/workers/reconcilerunner"
)

func newTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	log := logging.Discard()
	srv := New(Deps{
		Audits:      store,
		Jobs:        store,
		Processor:   reconcilerunner.ReconcileProcessor{Jobs: store, Reconciler: reconcile.New(store, log)},
		Lifecycle:   lifecycle.New(store, store, log),
		Scores:      healthscore.New(store),
		Quotas:      quota.New(store, log),
		Tiers:       config.DefaultTiers(),
		DefaultTier: "free",
		Log:         log,
	})
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, store
}

func do(t *testing.T, ts *httptest.Server, method, path, account string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	if account != "" {
		req.Header.Set(headerAccount, account)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var batch = map[string]any{
	"domain":        "https://www.example.com/",
	"pages_scanned": 3,
	"issues": []map[string]string{
		{"page_url": "https://example.com/pricing", "category": "links", "description": "Broken checkout link", "severity": "critical"},
		{"page_url": "https://example.com/about", "category": "copy", "description": "Typo in heading", "severity": "low"},
	},
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t)
	var out map[string]string
	assert.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/healthz", "", nil, &out))
	assert.Equal(t, "ok", out["status"])
}

func TestRequiresAccount(t *testing.T) {
	ts, _ := newTestServer(t)
	assert.Equal(t, http.StatusUnauthorized, do(t, ts, http.MethodGet, "/v1/usage", "", nil, nil))
}

func TestStartAudit_FreeTier(t *testing.T) {
	ts, _ := newTestServer(t)

	var dec map[string]any
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits/start", "acct-1", map[string]string{"domain": "example.com"}, &dec))
	assert.Equal(t, true, dec["allowed"])

	require.Equal(t, http.StatusTooManyRequests, do(t, ts, http.MethodPost, "/v1/audits/start", "acct-1", map[string]string{"domain": "www.example.com"}, &dec))
	assert.Equal(t, "daily_limit_exceeded", dec["reason"])

	require.Equal(t, http.StatusTooManyRequests, do(t, ts, http.MethodPost, "/v1/audits/start", "acct-1", map[string]string{"domain": "other.org"}, &dec))
	assert.Equal(t, "domain_limit_exceeded", dec["reason"])

	var usage map[string]any
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/usage?domain=example.com", "acct-1", nil, &usage))
	assert.EqualValues(t, 1, usage["today"])
	assert.EqualValues(t, 1, usage["limit"])
	assert.EqualValues(t, 1, usage["domains"])
	assert.NotEmpty(t, usage["resetAt"])

	var hist []dailyCountView
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/usage/history?domain=example.com&days=3", "acct-1", nil, &hist))
	require.Len(t, hist, 3)
	assert.Equal(t, 1, hist[2].Count)
}

func TestSubmitAudit_WaitAndLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	var audit auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, &audit))
	assert.Equal(t, "example.com", audit.Audit.Domain)
	require.Len(t, audit.Issues, 2)
	critical := audit.Issues[0]
	assert.Equal(t, "active", string(critical.Status))

	var score map[string]any
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/audits/"+audit.Audit.ID+"/score", "acct-1", nil, &score))
	assert.EqualValues(t, 82, score["score"])

	var is issueView
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPatch, "/v1/issues/"+critical.ID+"/status", "acct-1",
		map[string]string{"targetState": "resolved"}, &is))
	assert.Equal(t, "resolved", string(is.Status))

	var conflict errorBody
	require.Equal(t, http.StatusConflict, do(t, ts, http.MethodPatch, "/v1/issues/"+critical.ID+"/status", "acct-1",
		map[string]string{"targetState": "ignored"}, &conflict))
	assert.Equal(t, "invalid_transition", conflict.Code)

	require.Equal(t, http.StatusConflict, do(t, ts, http.MethodPatch, "/v1/issues/"+critical.ID+"/status", "acct-1",
		map[string]string{"targetState": "active", "expectedState": "ignored"}, &conflict))
	assert.Equal(t, "conflict", conflict.Code)

	var again auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, &again))
	assert.Equal(t, "resolved", string(again.Issues[0].Status), "resolved issue stays resolved on redetection")

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/domains/example.com/score", "acct-1", nil, &score))
	assert.EqualValues(t, 99, score["score"])

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/v1/audits/"+audit.Audit.ID, "acct-2", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPatch, "/v1/issues/"+critical.ID+"/status", "acct-2",
		map[string]string{"targetState": "active"}, nil))
}

func TestSubmitAudit_Async(t *testing.T) {
	ts, store := newTestServer(t)

	var accepted map[string]string
	require.Equal(t, http.StatusAccepted, do(t, ts, http.MethodPost, "/v1/audits", "acct-1", batch, &accepted))
	jobID := accepted["jobId"]
	require.NotEmpty(t, jobID)

	var job jobView
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/jobs/"+jobID, "acct-1", nil, &job))
	assert.Equal(t, "queued", string(job.Status))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/v1/jobs/"+jobID, "acct-2", nil, nil))

	job2, found, err := store.ClaimNextJob(t.Context())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, jobID, job2.ID)
}

func TestSubmitAudit_Validation(t *testing.T) {
	ts, _ := newTestServer(t)

	var eb errorBody
	bad := map[string]any{
		"domain": "example.com",
		"issues": []map[string]string{{"page_url": "https://example.com/", "description": "x", "severity": "urgent"}},
	}
	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", bad, &eb))
	assert.Equal(t, "issues[0].severity", eb.Field)

	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/audits", "acct-1", map[string]any{"domain": ""}, &eb))
	assert.Equal(t, "domain", eb.Field)

	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/audits?wait=true&timeout=soon", "acct-1", batch, &eb))
	assert.Equal(t, "timeout", eb.Field)
}

func TestSignatureStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	var audit auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, &audit))
	sig := audit.Issues[1].Signature

	var rec lifecycleView
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPatch, "/v1/domains/www.example.com/signatures/"+sig+"/status", "acct-1",
		map[string]string{"targetState": "ignored"}, &rec))
	assert.Equal(t, "ignored", string(rec.State))
	assert.Equal(t, int64(2), rec.Version)

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPatch, "/v1/domains/example.com/signatures/deadbeef/status", "acct-1",
		map[string]string{"targetState": "ignored"}, nil))
}

func TestBulkStatus(t *testing.T) {
	ts, _ := newTestServer(t)

	var audit auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, &audit))
	a, b := audit.Issues[0].ID, audit.Issues[1].ID

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPatch, "/v1/issues/"+b+"/status", "acct-1",
		map[string]string{"targetState": "ignored"}, nil))

	var res struct {
		UpdatedCount int      `json:"updatedCount"`
		UpdatedIDs   []string `json:"updatedIds"`
		SkippedIDs   []string `json:"skippedIds"`
	}
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPatch, "/v1/issues/status", "acct-1",
		map[string]any{"issueIds": []string{a, b, "missing"}, "targetState": "resolved"}, &res))
	assert.Equal(t, 1, res.UpdatedCount)
	assert.Equal(t, []string{a}, res.UpdatedIDs)
	assert.ElementsMatch(t, []string{b, "missing"}, res.SkippedIDs)

	var eb errorBody
	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPatch, "/v1/issues/status", "acct-1",
		map[string]any{"issueIds": []string{a}, "targetState": "done"}, &eb))
	assert.Equal(t, "targetState", eb.Field)
}

func TestSignatureStatus_RequiresRunOnDomain(t *testing.T) {
	ts, _ := newTestServer(t)

	var audit auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, &audit))
	sig := audit.Issues[0].Signature

	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodPatch, "/v1/domains/example.com/signatures/"+sig+"/status", "acct-2",
		map[string]string{"targetState": "resolved"}, nil))

	var after auditResponse
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/audits/"+audit.Audit.ID, "acct-1", nil, &after))
	assert.Equal(t, "active", string(after.Issues[0].Status))

	var score map[string]any
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/domains/example.com/score", "acct-1", nil, &score))
	assert.EqualValues(t, 82, score["score"])
}

func TestDomainScore_NoRuns(t *testing.T) {
	ts, _ := newTestServer(t)

	require.Equal(t, http.StatusOK, do(t, ts, http.MethodPost, "/v1/audits?wait=true", "acct-1", batch, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/v1/domains/never-audited.com/score", "acct-1", nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, ts, http.MethodGet, "/v1/domains/example.com/score", "acct-2", nil, nil))
}

func TestSubmitAudit_AsyncRejectsInvalidBatch(t *testing.T) {
	ts, store := newTestServer(t)

	bad := map[string]any{
		"domain": "example.com",
		"issues": []map[string]string{{"page_url": "https://example.com/", "description": "x", "severity": "urgent"}},
	}
	var eb errorBody
	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/audits", "acct-1", bad, &eb))
	assert.Equal(t, "issues[0].severity", eb.Field)

	_, found, err := store.ClaimNextJob(t.Context())
	require.NoError(t, err)
	assert.False(t, found, "invalid batch must not be queued")
}

func TestQueryParamBinding(t *testing.T) {
	ts, _ := newTestServer(t)

	var eb errorBody
	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodGet, "/v1/usage/history?domain=example.com&days=lots", "acct-1", nil, &eb))
	assert.Equal(t, "days", eb.Field)

	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodGet, "/v1/usage/history", "acct-1", nil, &eb))
	assert.Equal(t, "domain", eb.Field)

	require.Equal(t, http.StatusBadRequest, do(t, ts, http.MethodPost, "/v1/audits?wait=maybe", "acct-1", batch, &eb))
	assert.Equal(t, "wait", eb.Field)

	var hist []dailyCountView
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/v1/usage/history?domain=example.com", "acct-1", nil, &hist))
	assert.Len(t, hist, 7)
}

func TestDebugVars(t *testing.T) {
	ts, _ := newTestServer(t)

	var vars map[string]any
	require.Equal(t, http.StatusOK, do(t, ts, http.MethodGet, "/debug/vars", "", nil, &vars))
	assert.Contains(t, vars, "contentaudit_quota_fail_open_total")
}
