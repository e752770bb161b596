package stages

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Stage names, used in errors, logs and spans.
const (
	StagePlanner     = "planner"
	StageRanker      = "ranker"
	StageSynthesizer = "synthesizer"
	StageReviewer    = "reviewer"
)

// Error reports a stage failure that cannot be recovered locally.
type Error struct {
	Stage string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("%s stage: %v", e.Stage, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// FallbackReason explains why a stage used its default output.
type FallbackReason string

const (
	ReasonNone         FallbackReason = ""
	ReasonCallFailed   FallbackReason = "call_failed"
	ReasonInvalidJSON  FallbackReason = "invalid_json"
	ReasonMissingField FallbackReason = "missing_field"
	ReasonUnknownID    FallbackReason = "unknown_id"
	ReasonEmptyRanking FallbackReason = "empty_ranking"
	ReasonNoCandidates FallbackReason = "no_candidates"
)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// stripFences removes a surrounding Markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	} else {
		t = ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}
