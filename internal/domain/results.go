package domain

import "time"

type SeverityCounts struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	Critical int `json:"critical"`
}

type ScoreMetrics struct {
	TotalActive     int            `json:"totalActive"`
	TotalCritical   int            `json:"totalCritical"`
	BySeverity      SeverityCounts `json:"bySeverity"`
	CriticalPages   int            `json:"criticalPages"`
	PagesWithIssues int            `json:"pagesWithIssues"`
}

type HealthScore struct {
	Score   int          `json:"score"`
	Metrics ScoreMetrics `json:"metrics"`
}

type QuotaReason string

const (
	QuotaOK          QuotaReason = ""
	QuotaDailyLimit  QuotaReason = "daily_limit_exceeded"
	QuotaDomainLimit QuotaReason = "domain_limit_exceeded"
)

// QuotaDecision is the outcome of gating one audit start.
type QuotaDecision struct {
	Allowed bool        `json:"allowed"`
	Reason  QuotaReason `json:"reason,omitempty"`
	Used    int         `json:"used"`
	Limit   int         `json:"limit"`
	// FailOpen is set when a store error forced the request through.
	FailOpen bool `json:"failOpen,omitempty"`
}

type QuotaUsage struct {
	Today       int       `json:"today"`
	Limit       int       `json:"limit"`
	Domains     int       `json:"domains"`
	DomainLimit int       `json:"domainLimit"`
	ResetAt     time.Time `json:"resetAt"`
}
