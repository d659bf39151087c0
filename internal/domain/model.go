package domain

import "time"

// Core domain models shared by services and adapters. HTTP request/response
// shapes live in internal/adapters/http; keep these decoupled from the wire.

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; unknown values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityCritical:
		return 3
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

// Status is the user-assigned disposition of an issue.
type Status string

const (
	StatusActive   Status = "active"
	StatusIgnored  Status = "ignored"
	StatusResolved Status = "resolved"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIgnored, StatusResolved:
		return true
	}
	return false
}

// CanTransition reports whether a lifecycle record may move from s to target.
// ignored and resolved only reach each other through active.
func (s Status) CanTransition(target Status) bool {
	switch s {
	case StatusActive:
		return target == StatusIgnored || target == StatusResolved
	case StatusIgnored, StatusResolved:
		return target == StatusActive
	}
	return false
}

type AuditRun struct {
	ID           string
	AccountID    string
	Domain       string
	PagesScanned int
	CreatedAt    time.Time
}

type Issue struct {
	ID           string
	AuditID      string
	Domain       string
	PageURL      string
	Category     string
	Description  string
	Evidence     string
	SuggestedFix string
	Severity     Severity
	Signature    string
	Status       Status
	CreatedAt    time.Time
}

// LifecycleRecord is the durable disposition for one (domain, signature).
// Version increments on every accepted transition.
type LifecycleRecord struct {
	Domain    string
	Signature string
	State     Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RawIssue is one detection as delivered by the crawler/AI pipeline.
type RawIssue struct {
	PageURL      string   `json:"page_url"`
	Category     string   `json:"category"`
	Title        string   `json:"title,omitempty"`
	Description  string   `json:"description"`
	Evidence     string   `json:"evidence,omitempty"`
	Severity     Severity `json:"severity"`
	SuggestedFix string   `json:"suggested_fix"`
}

// Submission is a completed detection batch for one account and domain.
type Submission struct {
	AccountID    string     `json:"account_id"`
	Domain       string     `json:"domain"`
	PagesScanned int        `json:"pages_scanned"`
	Issues       []RawIssue `json:"issues"`
}

// Unlimited disables a quota dimension.
const Unlimited = -1

type Tier struct {
	Name            string `yaml:"name" json:"name"`
	MaxAuditsPerDay int    `yaml:"max_audits_per_day" json:"max_audits_per_day"`
	MaxDomains      int    `yaml:"max_domains" json:"max_domains"`
}

// DailyCount is the quota counter value for one UTC day.
type DailyCount struct {
	Day   time.Time
	Count int
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks an asynchronous reconciliation of a submission.
type Job struct {
	ID         string
	Status     JobStatus
	AuditID    string
	Error      string
	Attempts   int
	QueuedAt   time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}
