package secrets

import "time"

// Result is the outcome of a scrub.
type Result struct {
	Scrubbed string
	// Findings never carry the secret value.
	Findings []Finding
	ByRule   map[string]int
	Duration time.Duration
}

// Finding is one detected secret.
type Finding struct {
	RuleID      string
	Description string
	Line        int
}

// HasFindings returns true if anything was redacted.
func (r *Result) HasFindings() bool {
	return len(r.Findings) > 0
}

// RuleIDs returns the distinct rule ids that matched.
func (r *Result) RuleIDs() []string {
	ids := make([]string, 0, len(r.ByRule))
	for id := range r.ByRule {
		ids = append(ids, id)
	}
	return ids
}
