package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

type metrics struct {
	stageDuration metric.Float64Histogram
	fallbacks     metric.Int64Counter
	builds        metric.Int64Counter
	answers       metric.Int64Counter
}

func newMetrics(meter metric.Meter, logger *zap.Logger) *metrics {
	m := &metrics{}
	var err error

	m.stageDuration, err = meter.Float64Histogram(
		"askcatalog.pipeline.stage.duration",
		metric.WithDescription("Duration of each pipeline stage"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		logger.Warn("failed to create stage duration histogram", zap.Error(err))
	}

	m.fallbacks, err = meter.Int64Counter(
		"askcatalog.pipeline.fallbacks",
		metric.WithDescription("Stage outputs replaced by their default"),
		metric.WithUnit("{fallback}"),
	)
	if err != nil {
		logger.Warn("failed to create fallbacks counter", zap.Error(err))
	}

	m.builds, err = meter.Int64Counter(
		"askcatalog.pipeline.state.builds",
		metric.WithDescription("Shared state initializations by origin"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		logger.Warn("failed to create builds counter", zap.Error(err))
	}

	m.answers, err = meter.Int64Counter(
		"askcatalog.pipeline.answers",
		metric.WithDescription("Answer requests by outcome"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("failed to create answers counter", zap.Error(err))
	}
	return m
}

func (m *metrics) stage(ctx context.Context, stage string, start time.Time) {
	if m.stageDuration != nil {
		m.stageDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
	}
}

func (m *metrics) fallback(ctx context.Context, stage, reason string) {
	if m.fallbacks != nil {
		m.fallbacks.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", stage),
			attribute.String("reason", reason),
		))
	}
}

func (m *metrics) build(ctx context.Context, origin Origin) {
	if m.builds != nil {
		m.builds.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", string(origin))))
	}
}

func (m *metrics) answer(ctx context.Context, outcome string) {
	if m.answers != nil {
		m.answers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}
