package stages

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/llm"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/prompts"
)

// Plan is the planner outcome.
type Plan struct {
	SearchText string
	// Fallback is set when SearchText is the raw query.
	Fallback bool
	Reason   FallbackReason
}

// Planner distills a user query into search keywords.
type Planner struct {
	Completer llm.Completer
	Prompts   *prompts.Library
	Timeout   time.Duration
	Logger    *logging.Logger
}

// Plan asks the model for {"query": "..."} and falls back to the raw query
// when the call fails or the output is unusable.
func (p *Planner) Plan(ctx context.Context, query string) Plan {
	logger := orNop(p.Logger)
	fallback := func(reason FallbackReason, fields ...zap.Field) Plan {
		logger.Debug(ctx, "planner fallback to raw query",
			append(fields, zap.String("reason", string(reason)))...)
		return Plan{SearchText: query, Fallback: true, Reason: reason}
	}

	user, err := prompts.PlannerInput(query)
	if err != nil {
		return fallback(ReasonCallFailed, zap.Error(err))
	}
	cctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()
	out, err := p.Completer.Complete(cctx, p.Prompts.Get(prompts.Planner), user)
	if err != nil {
		logger.Warn(ctx, "planner completion failed", zap.Error(err))
		return fallback(ReasonCallFailed)
	}

	text, reason := parsePlannerOutput(out)
	if reason != ReasonNone {
		return fallback(reason, logging.Excerpt("output", out, 200))
	}
	return Plan{SearchText: text}
}

// parsePlannerOutput extracts a non-empty "query" string from a JSON object.
func parsePlannerOutput(out string) (string, FallbackReason) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(out)), &obj); err != nil {
		return "", ReasonInvalidJSON
	}
	raw, ok := obj["query"]
	if !ok {
		return "", ReasonMissingField
	}
	var q string
	if err := json.Unmarshal(raw, &q); err != nil {
		return "", ReasonMissingField
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", ReasonMissingField
	}
	return q, ReasonNone
}

func orNop(l *logging.Logger) *logging.Logger {
	if l == nil {
		return logging.NewNop()
	}
	return l
}
