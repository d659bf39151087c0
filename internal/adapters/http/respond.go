package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"contentaudit/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors onto status codes. Anything unrecognised is
// treated as a transient store failure: logged in full, reported generically.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, domain.ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Code: "invalid_transition"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "state changed, refetch and retry", Code: "conflict"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, domain.ErrQuotaExceeded):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "quota exceeded"})
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		w.Header().Set("Retry-After", "5")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "temporarily unavailable, retry"})
	}
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return domain.Invalid("body", err.Error())
	}
	return nil
}

type auditView struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Domain       string    `json:"domain"`
	PagesScanned int       `json:"pagesScanned"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toAuditView(run domain.AuditRun) auditView {
	return auditView{
		ID:           run.ID,
		AccountID:    run.AccountID,
		Domain:       run.Domain,
		PagesScanned: run.PagesScanned,
		CreatedAt:    run.CreatedAt,
	}
}

type issueView struct {
	ID           string          `json:"id"`
	AuditID      string          `json:"auditId"`
	Domain       string          `json:"domain"`
	PageURL      string          `json:"pageUrl"`
	Category     string          `json:"category"`
	Description  string          `json:"description"`
	Evidence     string          `json:"evidence,omitempty"`
	SuggestedFix string          `json:"suggestedFix"`
	Severity     domain.Severity `json:"severity"`
	Signature    string          `json:"signature"`
	Status       domain.Status   `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func toIssueView(is domain.Issue) issueView {
	return issueView{
		ID:           is.ID,
		AuditID:      is.AuditID,
		Domain:       is.Domain,
		PageURL:      is.PageURL,
		Category:     is.Category,
		Description:  is.Description,
		Evidence:     is.Evidence,
		SuggestedFix: is.SuggestedFix,
		Severity:     is.Severity,
		Signature:    is.Signature,
		Status:       is.Status,
		CreatedAt:    is.CreatedAt,
	}
}

type auditResponse struct {
	Audit  auditView   `json:"audit"`
	Issues []issueView `json:"issues"`
}

func toAuditResponse(run domain.AuditRun, issues []domain.Issue) auditResponse {
	out := auditResponse{Audit: toAuditView(run), Issues: make([]issueView, 0, len(issues))}
	for _, is := range issues {
		out.Issues = append(out.Issues, toIssueView(is))
	}
	return out
}

type lifecycleView struct {
	Domain    string        `json:"domain"`
	Signature string        `json:"signature"`
	State     domain.Status `json:"state"`
	Version   int64         `json:"version"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

type jobView struct {
	ID         string           `json:"id"`
	Status     domain.JobStatus `json:"status"`
	AuditID    string           `json:"auditId,omitempty"`
	Error      string           `json:"error,omitempty"`
	Attempts   int              `json:"attempts"`
	QueuedAt   time.Time        `json:"queuedAt"`
	StartedAt  *time.Time       `json:"startedAt,omitempty"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

type dailyCountView struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}
