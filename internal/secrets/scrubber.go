package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	gitleaksConfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	gitleaksRegexp "github.com/zricethezav/gitleaks/v8/regexp"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	Scrub(content string) *Result
	IsEnabled() bool
}

type scrubber struct {
	cfg      *Config
	rules    []compiledRule
	allow    []*regexp.Regexp
	gitleaks *gitleaksConfig.Config
}

// New creates a Scrubber. A nil config means DefaultConfig.
func New(cfg *Config) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}
	if cfg.RedactionString == "" {
		cfg.RedactionString = "[REDACTED]"
	}

	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	s := &scrubber{cfg: cfg, rules: rules, allow: allow}

	if cfg.Gitleaks {
		// Loading the embedded gitleaks config is slow; do it once.
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("loading gitleaks rules: %w", err)
		}
		glCfg := d.Config
		if len(allow) > 0 {
			al := &gitleaksConfig.Allowlist{Description: "askcatalog allow list"}
			for _, re := range allow {
				al.Regexes = append(al.Regexes, (*gitleaksRegexp.Regexp)(re))
			}
			glCfg.Allowlists = append(glCfg.Allowlists, al)
		}
		s.gitleaks = &glCfg
	}
	return s, nil
}

type span struct {
	start, end int
	ruleID     string
	desc       string
}

// Scrub returns content with every detected secret replaced by the
// redaction string.
func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	var spans []span

	if s.gitleaks != nil {
		// Detectors accumulate state, so each call gets a fresh one.
		d := detect.NewDetector(*s.gitleaks)
		for _, f := range d.DetectString(content) {
			if f.Secret == "" {
				continue
			}
			for _, loc := range indexAll(content, f.Secret) {
				spans = append(spans, span{loc, loc + len(f.Secret), f.RuleID, f.Description})
			}
		}
	}

	for _, r := range s.rules {
		for _, m := range r.pattern.FindAllStringIndex(content, -1) {
			if s.allowed(content[m[0]:m[1]]) {
				continue
			}
			spans = append(spans, span{m[0], m[1], r.ID, r.Description})
		}
	}

	res := &Result{Scrubbed: content, ByRule: map[string]int{}}
	if len(spans) == 0 {
		res.Duration = time.Since(start)
		return res
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(s.cfg.RedactionString)
		prev = sp.end
		res.Findings = append(res.Findings, Finding{
			RuleID:      sp.ruleID,
			Description: sp.desc,
			Line:        strings.Count(content[:sp.start], "\n") + 1,
		})
		res.ByRule[sp.ruleID]++
	}
	b.WriteString(content[prev:])
	res.Scrubbed = b.String()
	res.Duration = time.Since(start)
	return res
}

func (s *scrubber) IsEnabled() bool { return true }

func (s *scrubber) allowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

func indexAll(s, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

func (NoopScrubber) IsEnabled() bool { return false }

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
