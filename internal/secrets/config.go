package secrets

import (
	"fmt"
	"regexp"

	"github.com/fyrsmithlabs/askcatalog/internal/config"
)

// Config configures the scrubber.
type Config struct {
	Enabled         bool
	RedactionString string
	// AllowList holds patterns whose matches are never redacted.
	AllowList []string
	Rules     []Rule
	// Gitleaks toggles the gitleaks default rule set.
	Gitleaks bool
}

// DefaultConfig returns an enabled scrubber config.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		RedactionString: "[REDACTED]",
		Rules:           DefaultRules(),
		Gitleaks:        true,
	}
}

// ConfigFrom applies the application's secrets section to the defaults.
func ConfigFrom(c config.SecretsConfig) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = c.Enabled
	if c.RedactionString != "" {
		cfg.RedactionString = c.RedactionString
	}
	cfg.AllowList = append(cfg.AllowList, c.AllowList...)
	return cfg
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

func (c *Config) compile() ([]compiledRule, []*regexp.Regexp, error) {
	rules := make([]compiledRule, 0, len(c.Rules))
	for i, r := range c.Rules {
		if r.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: id is required", i)
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", r.ID, err)
		}
		rules = append(rules, compiledRule{Rule: r, pattern: re})
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, p := range c.AllowList {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}
