package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/stages"
)

// Resolution is the capability chosen for a search text.
type Resolution struct {
	Capability catalog.CapabilityRecord
	// Found is false when no capability row was among the nearest rows.
	Found bool
}

// Answer runs the pipeline for query. conv may be nil, in which case nothing
// is remembered.
func (c *Coordinator) Answer(ctx context.Context, query string, conv *memory.Conversation) (answer string, err error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.Answer")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "answer failed")
			c.metrics.answer(ctx, "error")
		} else {
			c.metrics.answer(ctx, "ok")
		}
		span.End()
	}()
	if conv != nil {
		ctx = logging.WithSessionID(ctx, conv.SessionID())
	}

	state, err := c.Init(ctx)
	if err != nil {
		return "", err
	}
	span.SetAttributes(attribute.Int64("state.version", state.Version))

	var userMsg memory.Message
	if conv != nil {
		userMsg = conv.Record(memory.RoleUser, query)
	}

	plan := c.plan(ctx, query)
	res := c.resolve(ctx, state, plan.SearchText)

	name := ""
	if res.Found {
		name = res.Capability.Name
	}
	candidates := state.Catalog.CandidatesFor(name)
	ranking := c.rank(ctx, query, candidates)

	draft, err := c.synthesize(ctx, query, ranking.Applications)
	if err != nil {
		return "", err
	}
	final, err := c.review(ctx, query, draft)
	if err != nil {
		return "", err
	}

	if conv != nil {
		assistantMsg := conv.Record(memory.RoleAssistant, final)
		if perr := conv.Persist(ctx, userMsg, assistantMsg); perr != nil {
			c.logger.Error(ctx, "failed to persist conversation", zap.Error(perr))
		}
	}

	c.logger.Info(ctx, "answered",
		zap.String("capability", res.Capability.ID),
		zap.Strings("applications", ranking.IDs()),
		zap.Bool("planner_fallback", plan.Fallback),
		zap.Bool("ranker_fallback", ranking.Fallback))
	return final, nil
}

func (c *Coordinator) plan(ctx context.Context, query string) stages.Plan {
	ctx, span := c.tracer.Start(ctx, "stage.planner")
	defer span.End()
	start := time.Now()

	plan := c.planner.Plan(ctx, query)
	c.metrics.stage(ctx, stages.StagePlanner, start)
	span.SetAttributes(attribute.Bool("fallback", plan.Fallback))
	if plan.Fallback {
		span.SetAttributes(attribute.String("fallback.reason", string(plan.Reason)))
		c.metrics.fallback(ctx, stages.StagePlanner, string(plan.Reason))
	}
	return plan
}

// resolve embeds text and returns the first capability among the k nearest
// rows, k being the number of capabilities. Embedding or search failures
// resolve to no capability.
func (c *Coordinator) resolve(ctx context.Context, state *State, text string) Resolution {
	ctx, span := c.tracer.Start(ctx, "stage.retrieve")
	defer span.End()
	start := time.Now()
	defer c.metrics.stage(ctx, "retrieve", start)

	ectx, cancel := ctx, context.CancelFunc(func() {})
	if d := c.timeouts.EmbedTimeout.Duration(); d > 0 {
		ectx, cancel = context.WithTimeout(ctx, d)
	}
	defer cancel()

	vec, err := c.embedder.EmbedQuery(ectx, text)
	if err != nil {
		c.logger.Warn(ctx, "query embedding failed; using all applications", zap.Error(err))
		c.metrics.fallback(ctx, "retrieve", "embed_failed")
		return Resolution{}
	}

	k := state.Catalog.CapabilityCount()
	if k < 1 {
		k = 1
	}
	matches, err := state.Index.Search(ctx, vec, k)
	if err != nil {
		c.logger.Warn(ctx, "index search failed; using all applications", zap.Error(err))
		c.metrics.fallback(ctx, "retrieve", "search_failed")
		return Resolution{}
	}

	for _, m := range matches {
		if m.Entry.Kind != catalog.KindCapability {
			continue
		}
		if capRec, ok := state.Catalog.Capability(m.Entry.ID()); ok {
			span.SetAttributes(
				attribute.String("capability.id", capRec.ID),
				attribute.Int("row", m.Row))
			return Resolution{Capability: capRec, Found: true}
		}
	}
	c.logger.Debug(ctx, "no capability among nearest rows", zap.Int("k", k))
	c.metrics.fallback(ctx, "retrieve", "no_capability")
	return Resolution{}
}

func (c *Coordinator) rank(ctx context.Context, query string, candidates []catalog.ApplicationRecord) stages.Ranking {
	ctx, span := c.tracer.Start(ctx, "stage.ranker")
	defer span.End()
	start := time.Now()

	ranking := c.ranker.Rank(ctx, query, candidates)
	c.metrics.stage(ctx, stages.StageRanker, start)
	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("ranked", len(ranking.Applications)),
		attribute.Bool("fallback", ranking.Fallback))
	if ranking.Fallback {
		c.metrics.fallback(ctx, stages.StageRanker, string(ranking.Reason))
	}
	return ranking
}

func (c *Coordinator) synthesize(ctx context.Context, query string, ranked []catalog.ApplicationRecord) (string, error) {
	ctx, span := c.tracer.Start(ctx, "stage.synthesizer")
	defer span.End()
	start := time.Now()

	out, err := c.synthesizer.Synthesize(ctx, query, ranked)
	c.metrics.stage(ctx, stages.StageSynthesizer, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "synthesizer failed")
		c.logger.Error(ctx, "synthesizer failed", zap.Error(err))
	}
	return out, err
}

func (c *Coordinator) review(ctx context.Context, query, draft string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "stage.reviewer")
	defer span.End()
	start := time.Now()

	out, err := c.reviewer.Review(ctx, query, draft)
	c.metrics.stage(ctx, stages.StageReviewer, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reviewer failed")
		c.logger.Error(ctx, "reviewer failed", zap.Error(err))
	}
	return out, err
}
