package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// InstrumentationName is the meter scope for server metrics.
const InstrumentationName = "github.com/fyrsmithlabs/askcatalog/internal/http"

// Answer outcomes.
const (
	outcomeAnswered = "answered"
	outcomeInvalid  = "invalid"
	outcomeFailed   = "failed"
)

// Session origins for answer requests.
const (
	sessionProvided  = "provided"
	sessionGenerated = "generated"
	sessionNone      = "none"
)

const unmatchedRoute = "unmatched"

// requestMetrics records per-route request metrics and answer outcomes.
type requestMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
	answers  metric.Int64Counter
	denied   metric.Int64Counter
}

func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	m := &requestMetrics{}
	var err error

	m.requests, err = meter.Int64Counter("askcatalog.http.requests",
		metric.WithDescription("HTTP requests by route, method and status class"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create http requests counter", zap.Error(err))
	}

	// Answer requests run four model calls, so the buckets reach minutes.
	m.duration, err = meter.Float64Histogram("askcatalog.http.request.duration",
		metric.WithDescription("HTTP request latency by route"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120, 300))
	if err != nil {
		logger.Warn("failed to create http duration histogram", zap.Error(err))
	}

	m.inflight, err = meter.Int64UpDownCounter("askcatalog.http.requests.inflight",
		metric.WithDescription("HTTP requests being served"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create http inflight counter", zap.Error(err))
	}

	m.answers, err = meter.Int64Counter("askcatalog.http.answers",
		metric.WithDescription("Answer requests by outcome and session origin"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create answers counter", zap.Error(err))
	}

	m.denied, err = meter.Int64Counter("askcatalog.http.admin.denied",
		metric.WithDescription("Administrative requests rejected for a missing or wrong token"),
		metric.WithUnit("{request}"))
	if err != nil {
		logger.Warn("failed to create admin denied counter", zap.Error(err))
	}

	return m
}

// middleware records every request, including unmatched ones. It must run
// outside the handler that turns returned errors into responses.
func (m *requestMetrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			start := time.Now()
			if m.inflight != nil {
				m.inflight.Add(ctx, 1)
				defer m.inflight.Add(ctx, -1)
			}

			err := next(c)

			status := c.Response().Status
			route := routeLabel(c.Path(), status)
			if m.requests != nil {
				m.requests.Add(ctx, 1, metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("method", c.Request().Method),
					attribute.String("status_class", statusClass(status)),
				))
			}
			if m.duration != nil {
				m.duration.Record(ctx, time.Since(start).Seconds(),
					metric.WithAttributes(attribute.String("route", route)))
			}
			return err
		}
	}
}

func (m *requestMetrics) answer(ctx context.Context, outcome, session string) {
	if m.answers == nil {
		return
	}
	m.answers.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("session", session),
	))
}

func (m *requestMetrics) adminDenied(ctx context.Context, route string) {
	if m.denied == nil {
		return
	}
	m.denied.Add(ctx, 1, metric.WithAttributes(attribute.String("route", route)))
}

// routeLabel maps the matched route to a metric label. Requests that matched
// no handler share one label so requests for arbitrary paths cannot grow cardinality.
func routeLabel(path string, status int) string {
	if path == "" || status == http.StatusNotFound || status == http.StatusMethodNotAllowed {
		return unmatchedRoute
	}
	return path
}

// statusClass buckets a status code as "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
