package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"contentaudit/internal/domain"
	"contentaudit/internal/ports"
)

// Service applies account-holder dispositions to lifecycle records. Every
// write is a compare-and-set on the record version.
type Service struct {
	audits    ports.AuditRepository
	lifecycle ports.LifecycleRepository
	log       *slog.Logger
	now       ports.Clock
}

func New(audits ports.AuditRepository, lifecycle ports.LifecycleRepository, log *slog.Logger) *Service {
	return &Service{audits: audits, lifecycle: lifecycle, log: log, now: time.Now}
}

// Transition moves the (domain, signature) record to req.Target.
func (s *Service) Transition(ctx context.Context, req ports.TransitionRequest) (domain.LifecycleRecord, error) {
	if err := validateTarget(req); err != nil {
		return domain.LifecycleRecord{}, err
	}
	if strings.TrimSpace(req.Signature) == "" {
		return domain.LifecycleRecord{}, domain.Invalid("signature", "required")
	}
	d, err := domain.RegistrableDomain(req.Domain)
	if err != nil {
		return domain.LifecycleRecord{}, err
	}
	return s.apply(ctx, d, strings.TrimSpace(req.Signature), req.Target, req.Expected)
}

// TransitionIssue resolves the issue's key and transitions it, returning the
// issue with its re-materialized status.
func (s *Service) TransitionIssue(ctx context.Context, req ports.TransitionRequest) (domain.Issue, error) {
	if err := validateTarget(req); err != nil {
		return domain.Issue{}, err
	}
	if strings.TrimSpace(req.IssueID) == "" {
		return domain.Issue{}, domain.Invalid("issueId", "required")
	}
	is, err := s.audits.GetIssue(ctx, req.IssueID)
	if err != nil {
		return domain.Issue{}, fmt.Errorf("load issue %s: %w", req.IssueID, err)
	}
	rec, err := s.apply(ctx, is.Domain, is.Signature, req.Target, req.Expected)
	if err != nil {
		return domain.Issue{}, err
	}
	is.Status = rec.State
	return is, nil
}

func (s *Service) apply(ctx context.Context, domainName, signature string, target, expected domain.Status) (domain.LifecycleRecord, error) {
	rec, err := s.lifecycle.GetLifecycle(ctx, domainName, signature)
	if err != nil {
		return domain.LifecycleRecord{}, fmt.Errorf("load lifecycle %s/%s: %w", domainName, signature, err)
	}
	if expected != "" && expected != rec.State {
		return domain.LifecycleRecord{}, fmt.Errorf("state is %s, caller expected %s: %w", rec.State, expected, domain.ErrConflict)
	}
	if !rec.State.CanTransition(target) {
		return domain.LifecycleRecord{}, fmt.Errorf("%s -> %s: %w", rec.State, target, domain.ErrInvalidTransition)
	}
	updated, err := s.lifecycle.CompareAndSetLifecycle(ctx, rec, target, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.log.Info("lifecycle write lost race", "domain", domainName, "signature", signature, "version", rec.Version)
		}
		return domain.LifecycleRecord{}, fmt.Errorf("update lifecycle %s/%s: %w", domainName, signature, err)
	}
	s.log.Debug("lifecycle transition", "domain", domainName, "signature", signature, "from", rec.State, "to", target)
	return updated, nil
}

// BulkTransition applies target to each issue whose current status is a valid
// source for it. Ineligible or unknown ids are skipped; a failed write is
// reported per item and does not undo the items already applied.
func (s *Service) BulkTransition(ctx context.Context, req ports.BulkRequest) (ports.BulkResult, error) {
	if !req.Target.Valid() {
		return ports.BulkResult{}, domain.Invalid("targetState", fmt.Sprintf("unknown state %q", req.Target))
	}
	if len(req.IssueIDs) == 0 {
		return ports.BulkResult{}, domain.Invalid("issueIds", "at least one id required")
	}

	res := ports.BulkResult{UpdatedIDs: []string{}, SkippedIDs: []string{}}
	for _, id := range req.IssueIDs {
		if err := ctx.Err(); err != nil {
			res.Failed = append(res.Failed, ports.BulkFailure{ID: id, Reason: "cancelled"})
			continue
		}
		is, err := s.audits.GetIssue(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			res.SkippedIDs = append(res.SkippedIDs, id)
			continue
		}
		if err != nil {
			s.log.Error("bulk transition: load issue", "issue", id, "err", err)
			res.Failed = append(res.Failed, ports.BulkFailure{ID: id, Reason: "unavailable"})
			continue
		}
		rec, err := s.lifecycle.GetLifecycle(ctx, is.Domain, is.Signature)
		if err != nil {
			s.log.Error("bulk transition: load lifecycle", "issue", id, "domain", is.Domain, "signature", is.Signature, "err", err)
			res.Failed = append(res.Failed, ports.BulkFailure{ID: id, Reason: "unavailable"})
			continue
		}
		if !rec.State.CanTransition(req.Target) {
			res.SkippedIDs = append(res.SkippedIDs, id)
			continue
		}
		if _, err := s.lifecycle.CompareAndSetLifecycle(ctx, rec, req.Target, s.now().UTC()); err != nil {
			reason := "unavailable"
			if errors.Is(err, domain.ErrConflict) {
				reason = "conflict"
			} else {
				s.log.Error("bulk transition: write", "issue", id, "domain", is.Domain, "signature", is.Signature, "err", err)
			}
			res.Failed = append(res.Failed, ports.BulkFailure{ID: id, Reason: reason})
			continue
		}
		res.UpdatedIDs = append(res.UpdatedIDs, id)
	}
	res.UpdatedCount = len(res.UpdatedIDs)
	return res, nil
}

func validateTarget(req ports.TransitionRequest) error {
	if !req.Target.Valid() {
		return domain.Invalid("targetState", fmt.Sprintf("unknown state %q", req.Target))
	}
	if req.Expected != "" && !req.Expected.Valid() {
		return domain.Invalid("expectedState", fmt.Sprintf("unknown state %q", req.Expected))
	}
	return nil
}
