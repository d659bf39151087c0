// Package healthscore computes the 0-100 health score of an issue set.
//
//	score = clamp(100 - (low*1 + medium*3 + critical*7) - criticalPages*10, 0, 100)
//
// Only active issues count. criticalPages is the number of distinct page
// paths holding at least one active critical issue, a concentration penalty
// on top of the linear severity sum.
package healthscore

import (
	"net/url"
	"strings"

	"contentaudit/internal/domain"
)

const (
	weightLow           = 1
	weightMedium        = 3
	weightCritical      = 7
	criticalPagePenalty = 10
)

// Compute is pure: the same issues always give the same result.
func Compute(issues []domain.Issue) domain.HealthScore {
	var m domain.ScoreMetrics
	pages := map[string]struct{}{}
	critical := map[string]struct{}{}

	for _, is := range issues {
		if is.Status != domain.StatusActive {
			continue
		}
		m.TotalActive++
		page := PagePath(is.PageURL)
		pages[page] = struct{}{}
		switch is.Severity {
		case domain.SeverityLow:
			m.BySeverity.Low++
		case domain.SeverityMedium:
			m.BySeverity.Medium++
		case domain.SeverityCritical:
			m.BySeverity.Critical++
			critical[page] = struct{}{}
		}
	}
	m.TotalCritical = m.BySeverity.Critical
	m.CriticalPages = len(critical)
	m.PagesWithIssues = len(pages)

	penalty := m.BySeverity.Low*weightLow +
		m.BySeverity.Medium*weightMedium +
		m.BySeverity.Critical*weightCritical +
		m.CriticalPages*criticalPagePenalty
	return domain.HealthScore{Score: clamp(100-penalty, 0, 100), Metrics: m}
}

// PagePath keys a page by URL path; scheme, host, query and fragment are
// dropped. An empty path is "/".
func PagePath(raw string) string {
	raw = strings.TrimSpace(raw)
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		p = raw[:i]
	}
	if p == "" {
		return "/"
	}
	return p
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
