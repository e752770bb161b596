package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/config"
	"github.com/fyrsmithlabs/askcatalog/internal/llm"
	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/prompts"
	"github.com/fyrsmithlabs/askcatalog/internal/stages"
	"github.com/fyrsmithlabs/askcatalog/internal/telemetry"
	"github.com/fyrsmithlabs/askcatalog/internal/vectorindex"
)

const instrumentationName = "github.com/fyrsmithlabs/askcatalog/internal/pipeline"

// ErrRebuildInProgress is returned when a rebuild is requested while another
// is running.
var ErrRebuildInProgress = errors.New("rebuild already in progress")

// Embedder is the embedding service the coordinator needs.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// Options configures a Coordinator.
type Options struct {
	Source    catalog.Source
	Embedder  Embedder
	Completer llm.Completer
	Prompts   *prompts.Library

	Index    config.IndexConfig
	Pipeline config.PipelineConfig

	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry
}

// Coordinator owns the shared State and runs the answer pipeline.
type Coordinator struct {
	source   catalog.Source
	embedder Embedder
	index    config.IndexConfig
	timeouts config.PipelineConfig

	planner     *stages.Planner
	ranker      *stages.Ranker
	synthesizer *stages.Synthesizer
	reviewer    *stages.Reviewer

	logger  *logging.Logger
	tracer  trace.Tracer
	metrics *metrics

	state      atomic.Pointer[State]
	version    atomic.Int64
	init       singleflight.Group
	rebuilding atomic.Bool
}

// New creates a Coordinator. No catalog or index work happens until Init,
// Answer or Rebuild is called.
func New(opts Options) (*Coordinator, error) {
	if opts.Source == nil || opts.Embedder == nil || opts.Completer == nil {
		return nil, fmt.Errorf("%w: source, embedder and completer are required", config.ErrConfiguration)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.Named("pipeline")

	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)
	if opts.Telemetry != nil {
		tracer = opts.Telemetry.Tracer(instrumentationName)
		meter = opts.Telemetry.Meter(instrumentationName)
	}

	p := opts.Pipeline
	return &Coordinator{
		source:   opts.Source,
		embedder: opts.Embedder,
		index:    opts.Index,
		timeouts: p,
		planner: &stages.Planner{
			Completer: opts.Completer, Prompts: opts.Prompts,
			Timeout: p.PlannerTimeout.Duration(), Logger: logger,
		},
		ranker: &stages.Ranker{
			Completer: opts.Completer, Prompts: opts.Prompts,
			Timeout: p.RankerTimeout.Duration(), Logger: logger,
		},
		synthesizer: &stages.Synthesizer{
			Completer: opts.Completer, Prompts: opts.Prompts,
			Timeout: p.SynthesizerTimeout.Duration(),
		},
		reviewer: &stages.Reviewer{
			Completer: opts.Completer, Prompts: opts.Prompts,
			Timeout: p.ReviewerTimeout.Duration(),
		},
		logger:  logger,
		tracer:  tracer,
		metrics: newMetrics(meter, logger.Underlying()),
	}, nil
}

// State returns the current shared state, or nil before initialization.
func (c *Coordinator) State() *State { return c.state.Load() }

// Init returns the shared state, creating it on first use. Concurrent callers
// share one load-or-build; a failure is returned to all of them and the next
// call tries again. A caller whose ctx ends stops waiting, while the shared
// build runs on until index.build_timeout.
func (c *Coordinator) Init(ctx context.Context) (*State, error) {
	if s := c.state.Load(); s != nil {
		return s, nil
	}
	ch := c.init.DoChan("init", func() (interface{}, error) {
		if s := c.state.Load(); s != nil {
			return s, nil
		}
		buildCtx, cancel := c.buildContext(context.WithoutCancel(ctx))
		defer cancel()
		s, err := c.loadOrBuild(buildCtx, false)
		if err != nil {
			return nil, err
		}
		if !c.state.CompareAndSwap(nil, s) {
			return c.state.Load(), nil
		}
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for index: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*State), nil
	}
}

// Rebuild reloads the catalog, rebuilds the index from scratch and swaps the
// result in. The previous state keeps serving until the swap and stays in
// place if the rebuild fails.
func (c *Coordinator) Rebuild(ctx context.Context) (*State, error) {
	if !c.rebuilding.CompareAndSwap(false, true) {
		return nil, ErrRebuildInProgress
	}
	defer c.rebuilding.Store(false)

	ctx, cancel := c.buildContext(ctx)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "pipeline.Rebuild")
	defer span.End()

	s, err := c.loadOrBuild(ctx, true)
	if err != nil {
		span.RecordError(err)
		c.logger.Error(ctx, "rebuild failed; keeping previous state", zap.Error(err))
		return nil, err
	}
	c.state.Store(s)
	c.logger.Info(ctx, "rebuild complete",
		zap.Int64("version", s.Version),
		zap.Int("entries", s.Catalog.Len()))
	return s, nil
}

func (c *Coordinator) buildContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := c.index.BuildTimeout.Duration(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// loadOrBuild reads the catalog and returns a State whose index matches it,
// loading the persisted index when it is usable and building otherwise.
func (c *Coordinator) loadOrBuild(ctx context.Context, force bool) (*State, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.loadOrBuild")
	defer span.End()

	cat, err := catalog.Load(ctx, c.source)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if cat.Len() == 0 {
		return nil, vectorindex.ErrEmptyCatalog
	}

	unlock, err := vectorindex.Lock(ctx, c.index.Dir, c.index.LockTimeout.Duration())
	if err != nil {
		return nil, err
	}
	defer unlock()

	opts := vectorindex.Options{ModelID: c.embedder.ModelID(), Backend: c.index.Backend}

	if !force {
		idx, err := vectorindex.Load(ctx, c.index.Dir, opts)
		vectorindex.RecordLoadResult(err)
		switch {
		case err == nil && sameEntries(idx.Entries(), cat.Entries()):
			return c.newState(ctx, cat, idx, OriginLoaded), nil
		case err == nil:
			c.logger.Info(ctx, "persisted index does not match catalog; rebuilding")
		case errors.Is(err, fs.ErrNotExist):
			c.logger.Info(ctx, "no persisted index; building", zap.String("dir", c.index.Dir))
		default:
			c.logger.Warn(ctx, "discarding persisted index", zap.Error(err))
		}
	}

	start := time.Now()
	idx, err := vectorindex.Build(ctx, c.embedder, cat.Entries(), opts)
	if err != nil {
		return nil, fmt.Errorf("building index: %w", err)
	}
	vectorindex.BuildDuration.Observe(time.Since(start).Seconds())
	c.logger.Info(ctx, "index built",
		zap.Int("rows", idx.Len()),
		zap.Int("dim", idx.Dim()),
		zap.Duration("duration", time.Since(start)))

	err = idx.Persist(c.index.Dir)
	vectorindex.RecordPersistResult(err)
	if err != nil {
		c.logger.Warn(ctx, "failed to persist index; serving from memory", zap.Error(err))
	}
	return c.newState(ctx, cat, idx, OriginBuilt), nil
}

func (c *Coordinator) newState(ctx context.Context, cat *catalog.Catalog, idx *vectorindex.Index, origin Origin) *State {
	c.metrics.build(ctx, origin)
	vectorindex.UpdateIndexMetrics(idx)
	return &State{
		Catalog: cat,
		Index:   idx,
		Origin:  origin,
		Version: c.version.Add(1),
		ReadyAt: time.Now(),
	}
}

// sameEntries compares entries by their serialized records.
func sameEntries(a, b []catalog.Entry) bool {
	if len(a) != len(b) {
		return false
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
