package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// RegistrableDomain reduces a URL or bare host to its eTLD+1, which is the
// unit quotas and lifecycle records are keyed by.
func RegistrableDomain(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", Invalid("domain", "required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", Invalid("domain", err.Error())
	}
	host := strings.TrimSuffix(u.Hostname(), ".")
	if host == "" {
		return "", Invalid("domain", "missing host")
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// localhost, IPs and single-label hosts have no public suffix.
		registrable = host
	}
	return registrable, nil
}
