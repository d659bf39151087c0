package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"contentaudit/internal/domain"
)

// Tiers maps a plan name to its quota limits.
type Tiers map[string]domain.Tier

// DefaultTiers is used when PLAN_TIERS_FILE is not set.
func DefaultTiers() Tiers {
	return Tiers{
		"free":       {Name: "free", MaxAuditsPerDay: 1, MaxDomains: 1},
		"pro":        {Name: "pro", MaxAuditsPerDay: 10, MaxDomains: 5},
		"agency":     {Name: "agency", MaxAuditsPerDay: 50, MaxDomains: 50},
		"enterprise": {Name: "enterprise", MaxAuditsPerDay: domain.Unlimited, MaxDomains: domain.Unlimited},
	}
}

// LoadTiers reads a YAML file of the form
//
//	tiers:
//	  - name: free
//	    max_audits_per_day: 1
//	    max_domains: 1
//
// where -1 (or "unlimited") disables a limit.
func LoadTiers(path string) (Tiers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tiers file: %w", err)
	}
	return ParseTiers(raw)
}

func ParseTiers(raw []byte) (Tiers, error) {
	var doc struct {
		Tiers []struct {
			Name            string    `yaml:"name"`
			MaxAuditsPerDay yaml.Node `yaml:"max_audits_per_day"`
			MaxDomains      yaml.Node `yaml:"max_domains"`
		} `yaml:"tiers"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse tiers: %w", err)
	}
	if len(doc.Tiers) == 0 {
		return nil, fmt.Errorf("parse tiers: no tiers defined")
	}
	out := Tiers{}
	for i, t := range doc.Tiers {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			return nil, fmt.Errorf("tiers[%d]: name required", i)
		}
		audits, err := limit(t.MaxAuditsPerDay)
		if err != nil {
			return nil, fmt.Errorf("tiers[%d].max_audits_per_day: %w", i, err)
		}
		domains, err := limit(t.MaxDomains)
		if err != nil {
			return nil, fmt.Errorf("tiers[%d].max_domains: %w", i, err)
		}
		out[name] = domain.Tier{Name: name, MaxAuditsPerDay: audits, MaxDomains: domains}
	}
	return out, nil
}

func limit(n yaml.Node) (int, error) {
	if n.Kind == 0 {
		return 0, fmt.Errorf("required")
	}
	if strings.EqualFold(n.Value, "unlimited") {
		return domain.Unlimited, nil
	}
	var v int
	if err := n.Decode(&v); err != nil {
		return 0, err
	}
	if v < domain.Unlimited {
		return 0, fmt.Errorf("must be >= -1, got %d", v)
	}
	return v, nil
}

// Resolve returns the named tier, falling back to def.
func (t Tiers) Resolve(name, def string) domain.Tier {
	if tier, ok := t[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tier
	}
	return t[def]
}
