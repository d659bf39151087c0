package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
	"contentaudit/internal/services/reconcile"
	"contentaudit/internal/workers/reconcilerunner"
)

func (s *Server) tier(r *http.Request) domain.Tier {
	return s.tiers.Resolve(r.Header.Get(headerTier), s.defaultTier)
}

// ownedRun hides runs of other accounts behind ErrNotFound.
func (s *Server) ownedRun(ctx context.Context, acct, auditID string) (domain.AuditRun, error) {
	run, err := s.audits.GetRun(ctx, auditID)
	if err != nil {
		return domain.AuditRun{}, err
	}
	if run.AccountID != acct {
		return domain.AuditRun{}, domain.ErrNotFound
	}
	return run, nil
}

// ownedDomain normalizes raw and requires the account to have at least one
// run on it. Lifecycle records are shared per domain, so an account with no
// runs there must not touch them.
func (s *Server) ownedDomain(ctx context.Context, acct, raw string) (string, error) {
	d, err := domain.RegistrableDomain(raw)
	if err != nil {
		return "", err
	}
	ok, err := s.audits.AccountHasDomain(ctx, acct, d)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrNotFound
	}
	return d, nil
}

func (s *Server) ownedIssue(ctx context.Context, acct, issueID string) (domain.Issue, error) {
	is, err := s.audits.GetIssue(ctx, issueID)
	if err != nil {
		return domain.Issue{}, err
	}
	if _, err := s.ownedRun(ctx, acct, is.AuditID); err != nil {
		return domain.Issue{}, err
	}
	return is, nil
}

// handleStartAudit gates a new audit against the caller's plan tier and
// consumes one unit of quota when allowed.
func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var req StartAuditJSONRequestBody
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := domain.RegistrableDomain(req.Domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	dec := s.quotas.CheckAndConsume(r.Context(), accountID(r), d, s.tier(r))
	if !dec.Allowed {
		writeJSON(w, http.StatusTooManyRequests, dec)
		return
	}
	writeJSON(w, http.StatusOK, dec)
}

// handleSubmitAudit queues a detection batch. With ?wait=true the batch is
// reconciled inline and the resulting audit returned.
func (s *Server) handleSubmitAudit(w http.ResponseWriter, r *http.Request) {
	var params SubmitAuditParams
	if err := queryParam(r, "wait", false, &params.Wait); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "timeout", false, &params.Timeout); err != nil {
		s.writeError(w, r, err)
		return
	}
	wait := params.Wait != nil && *params.Wait
	timeout := defaultWaitTimeout
	if params.Timeout != nil {
		if *params.Timeout <= 0 {
			s.writeError(w, r, domain.Invalid("timeout", "must be a positive number of seconds"))
			return
		}
		timeout = min(time.Duration(*params.Timeout)*time.Second, maxWaitTimeout)
	}

	var req SubmitAuditJSONRequestBody
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sub := domain.Submission{AccountID: accountID(r), Domain: req.Domain, PagesScanned: req.PagesScanned, Issues: req.Issues}
	if err := reconcile.Validate(&sub); err != nil {
		s.writeError(w, r, err)
		return
	}

	jobID, err := s.jobs.EnqueueJob(r.Context(), sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !wait {
		writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	auditID, err := reconcilerunner.ProcessInline(ctx, s.jobs, s.processor, jobID, s.log)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAudit(w, r, auditID)
}

func (s *Server) writeAudit(w http.ResponseWriter, r *http.Request, auditID string) {
	run, err := s.ownedRun(r.Context(), accountID(r), auditID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	issues, err := s.audits.ListIssues(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditResponse(run, issues))
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeAudit(w, r, id)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sub, err := s.jobs.JobSubmission(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sub.AccountID != accountID(r) {
		s.writeError(w, r, domain.ErrNotFound)
		return
	}
	job, err := s.jobs.GetJob(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobView{
		ID:         job.ID,
		Status:     job.Status,
		AuditID:    job.AuditID,
		Error:      job.Error,
		Attempts:   job.Attempts,
		QueuedAt:   job.QueuedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	})
}

func (s *Server) handleAuditScore(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	run, err := s.ownedRun(r.Context(), accountID(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.scores.ForAudit(r.Context(), run.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleDomainScore(w http.ResponseWriter, r *http.Request) {
	d, err := pathParam(r, "domain")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.scores.ForDomain(r.Context(), accountID(r), d)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func expectedState(req StatusRequest) domain.Status {
	if req.ExpectedState == nil {
		return ""
	}
	return domain.Status(*req.ExpectedState)
}

func (s *Server) handleIssueStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req SetIssueStatusJSONRequestBody
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.ownedIssue(r.Context(), accountID(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	is, err := s.lifecycle.TransitionIssue(r.Context(), ports.TransitionRequest{
		IssueID:  id,
		Target:   domain.Status(req.TargetState),
		Expected: expectedState(req),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toIssueView(is))
}

func (s *Server) handleSignatureStatus(w http.ResponseWriter, r *http.Request) {
	rawDomain, err := pathParam(r, "domain")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sig, err := pathParam(r, "signature")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req SetSignatureStatusJSONRequestBody
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := s.ownedDomain(r.Context(), accountID(r), rawDomain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.lifecycle.Transition(r.Context(), ports.TransitionRequest{
		Domain:    d,
		Signature: sig,
		Target:    domain.Status(req.TargetState),
		Expected:  expectedState(req),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lifecycleView{
		Domain:    rec.Domain,
		Signature: rec.Signature,
		State:     rec.State,
		Version:   rec.Version,
		UpdatedAt: rec.UpdatedAt,
	})
}

// handleBulkStatus applies a target state to many issues. Ids the caller does
// not own are reported as skipped, like unknown ids.
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req BulkIssueStatusJSONRequestBody
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	target := domain.Status(req.TargetState)
	if !target.Valid() {
		s.writeError(w, r, domain.Invalid("targetState", "must be active, ignored or resolved"))
		return
	}
	if len(req.IssueIds) == 0 {
		s.writeError(w, r, domain.Invalid("issueIds", "at least one id required"))
		return
	}

	acct := accountID(r)
	var (
		owned   []string
		foreign []string
		failed  []ports.BulkFailure
	)
	for _, id := range req.IssueIds {
		_, err := s.ownedIssue(r.Context(), acct, id)
		switch {
		case err == nil:
			owned = append(owned, id)
		case errors.Is(err, domain.ErrNotFound):
			foreign = append(foreign, id)
		default:
			s.log.Error("bulk status: ownership check", "issue", id, "err", err)
			failed = append(failed, ports.BulkFailure{ID: id, Reason: "unavailable"})
		}
	}

	res := ports.BulkResult{UpdatedIDs: []string{}, SkippedIDs: []string{}}
	if len(owned) > 0 {
		var err error
		res, err = s.lifecycle.BulkTransition(r.Context(), ports.BulkRequest{IssueIDs: owned, Target: target})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	res.SkippedIDs = append(res.SkippedIDs, foreign...)
	res.Failed = append(res.Failed, failed...)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var params GetUsageParams
	if err := queryParam(r, "domain", false, &params.Domain); err != nil {
		s.writeError(w, r, err)
		return
	}
	var d string
	if params.Domain != nil && *params.Domain != "" {
		var err error
		if d, err = domain.RegistrableDomain(*params.Domain); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	u, err := s.quotas.Usage(r.Context(), accountID(r), d, s.tier(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUsageHistory(w http.ResponseWriter, r *http.Request) {
	var params GetUsageHistoryParams
	if err := queryParam(r, "domain", true, &params.Domain); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := queryParam(r, "days", false, &params.Days); err != nil {
		s.writeError(w, r, err)
		return
	}
	d, err := domain.RegistrableDomain(params.Domain)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	days := 7
	if params.Days != nil {
		days = *params.Days
	}
	hist, err := s.quotas.History(r.Context(), accountID(r), d, days)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]dailyCountView, 0, len(hist))
	for _, dc := range hist {
		out = append(out, dailyCountView{Day: dc.Day.Format(time.DateOnly), Count: dc.Count})
	}
	writeJSON(w, http.StatusOK, out)
}
