package stages

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/llm"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/prompts"
)

// Ranking is the ranker outcome.
type Ranking struct {
	// Applications is a duplicate-free subset of the candidates.
	Applications []catalog.ApplicationRecord
	// Fallback is set when Applications is the candidate order.
	Fallback bool
	Reason   FallbackReason
}

// IDs returns the ranked application ids.
func (r Ranking) IDs() []string {
	ids := make([]string, len(r.Applications))
	for i, a := range r.Applications {
		ids[i] = a.ID
	}
	return ids
}

// Ranker orders candidate applications by relevance to the query.
type Ranker struct {
	Completer llm.Completer
	Prompts   *prompts.Library
	Timeout   time.Duration
	Logger    *logging.Logger
}

// Rank asks the model for a JSON list of candidate ids. Any failure, or any
// id that is not a candidate, yields the candidates in their given order.
func (r *Ranker) Rank(ctx context.Context, query string, candidates []catalog.ApplicationRecord) Ranking {
	logger := orNop(r.Logger)
	if len(candidates) == 0 {
		return Ranking{Fallback: true, Reason: ReasonNoCandidates}
	}
	fallback := func(reason FallbackReason, fields ...zap.Field) Ranking {
		logger.Debug(ctx, "ranker fallback to candidate order",
			append(fields, zap.String("reason", string(reason)), zap.Int("candidates", len(candidates)))...)
		return Ranking{
			Applications: append([]catalog.ApplicationRecord(nil), candidates...),
			Fallback:     true,
			Reason:       reason,
		}
	}

	listing := make([]prompts.Listing, len(candidates))
	for i, c := range candidates {
		listing[i] = prompts.Listing{ID: c.ID, Name: c.Name, Description: c.Description}
	}
	user, err := prompts.RankerInput(query, listing)
	if err != nil {
		return fallback(ReasonCallFailed, zap.Error(err))
	}

	cctx, cancel := withTimeout(ctx, r.Timeout)
	defer cancel()
	out, err := r.Completer.Complete(cctx, r.Prompts.Get(prompts.Ranker), user)
	if err != nil {
		logger.Warn(ctx, "ranker completion failed", zap.Error(err))
		return fallback(ReasonCallFailed)
	}

	ranked, reason := rankByIDs(out, candidates)
	if reason != ReasonNone {
		return fallback(reason, logging.Excerpt("output", out, 200))
	}
	return Ranking{Applications: ranked}
}

// rankByIDs maps a JSON id list onto candidates. Repeated ids are kept once.
func rankByIDs(out string, candidates []catalog.ApplicationRecord) ([]catalog.ApplicationRecord, FallbackReason) {
	var ids []string
	if err := json.Unmarshal([]byte(stripFences(out)), &ids); err != nil {
		return nil, ReasonInvalidJSON
	}

	byID := make(map[string]int, len(candidates))
	for i, c := range candidates {
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = i
		}
	}

	seen := make(map[string]bool, len(ids))
	ranked := make([]catalog.ApplicationRecord, 0, len(candidates))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok {
			return nil, ReasonUnknownID
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		ranked = append(ranked, candidates[i])
	}
	if len(ranked) == 0 {
		return nil, ReasonEmptyRanking
	}
	return ranked, ReasonNone
}
