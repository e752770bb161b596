package stages

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/llm"
	"github.com/fyrsmithlabs/askcatalog/internal/prompts"
)

// Synthesizer drafts the answer from the ranked applications.
type Synthesizer struct {
	Completer llm.Completer
	Prompts   *prompts.Library
	Timeout   time.Duration
}

// Synthesize returns the model output unchanged.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, ranked []catalog.ApplicationRecord) (string, error) {
	listing := make([]prompts.Listing, len(ranked))
	for i, a := range ranked {
		listing[i] = prompts.Listing{ID: a.ID, Name: a.Name, Description: a.Description}
	}
	user, err := prompts.SynthesizerInput(query, listing)
	if err != nil {
		return "", &Error{Stage: StageSynthesizer, Err: err}
	}
	return complete(ctx, StageSynthesizer, s.Completer, s.Timeout, s.Prompts.Get(prompts.Synthesizer), user)
}

// Reviewer polishes the draft into the final answer.
type Reviewer struct {
	Completer llm.Completer
	Prompts   *prompts.Library
	Timeout   time.Duration
}

// Review returns the model output unchanged.
func (r *Reviewer) Review(ctx context.Context, query, draft string) (string, error) {
	user, err := prompts.ReviewerInput(query, draft)
	if err != nil {
		return "", &Error{Stage: StageReviewer, Err: err}
	}
	return complete(ctx, StageReviewer, r.Completer, r.Timeout, r.Prompts.Get(prompts.Reviewer), user)
}

func complete(ctx context.Context, stage string, c llm.Completer, timeout time.Duration, system, user string) (string, error) {
	cctx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	out, err := c.Complete(cctx, system, user)
	if err != nil {
		return "", &Error{Stage: stage, Err: err}
	}
	return out, nil
}
