package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/telemetry"
)

func newMeteredServer(t *testing.T, p *fakePipeline) (*Server, *telemetry.TestTelemetry) {
	t.Helper()
	tel := telemetry.NewTestTelemetry()
	server, err := NewServer(p, memory.NewSessions(5, time.Hour, nil, nil), zap.NewNop(), &Config{
		Host:       "localhost",
		Port:       8000,
		AdminToken: testAdminToken,
		Meter:      tel.Meter(InstrumentationName),
	})
	require.NoError(t, err)
	return server, tel
}

func routeAttr(r string) attribute.KeyValue { return attribute.String("route", r) }

func classAttr(c string) attribute.KeyValue { return attribute.String("status_class", c) }

func TestRequestMetrics_AnswerOutcomes(t *testing.T) {
	p := &fakePipeline{answer: "Use Bucket."}
	server, tel := newMeteredServer(t, p)
	ctx := context.Background()

	rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, http.Header{HeaderSessionID: {"sess-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "  "}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	p.err = errors.New("reviewer: gateway timeout")
	rec = postJSON(t, server, "/ask", AnswerRequest{Question: "q"}, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	answers := func(outcome, session string) int64 {
		return tel.Int64SumWhere(ctx, "askcatalog.http.answers",
			attribute.String("outcome", outcome), attribute.String("session", session))
	}
	assert.Equal(t, int64(1), answers(outcomeAnswered, sessionGenerated))
	assert.Equal(t, int64(1), answers(outcomeAnswered, sessionProvided))
	assert.Equal(t, int64(1), answers(outcomeInvalid, sessionNone))
	assert.Equal(t, int64(1), answers(outcomeFailed, sessionGenerated))

	const requests = "askcatalog.http.requests"
	assert.Equal(t, int64(2), tel.Int64SumWhere(ctx, requests, routeAttr("/api/v1/answer"), classAttr("2xx")))
	assert.Equal(t, int64(1), tel.Int64SumWhere(ctx, requests, routeAttr("/api/v1/answer"), classAttr("4xx")))
	assert.Equal(t, int64(1), tel.Int64SumWhere(ctx, requests, routeAttr("/ask"), classAttr("5xx"), attribute.String("method", http.MethodPost)))
	assert.Equal(t, uint64(4), tel.HistogramCount(ctx, "askcatalog.http.request.duration"))

	inflight, ok := tel.Int64Sum(ctx, "askcatalog.http.requests.inflight")
	require.True(t, ok)
	assert.Zero(t, inflight)
}

func TestRequestMetrics_UnmatchedRoutesShareALabel(t *testing.T) {
	server, tel := newMeteredServer(t, &fakePipeline{})
	ctx := context.Background()

	for _, path := range []string{"/wp-login.php", "/api/v1/nope", "/api/v2/answer"} {
		rec := httptest.NewRecorder()
		server.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	const requests = "askcatalog.http.requests"
	assert.Equal(t, int64(3), tel.Int64SumWhere(ctx, requests, routeAttr(unmatchedRoute), classAttr("4xx")))
	assert.Zero(t, tel.Int64SumWhere(ctx, requests, routeAttr("/wp-login.php")))
}

func TestRequestMetrics_AdminDenied(t *testing.T) {
	p := &fakePipeline{state: testState(t)}
	server, tel := newMeteredServer(t, p)
	ctx := context.Background()

	rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, adminHeader)
	require.Equal(t, http.StatusOK, rec.Code)

	denied, ok := tel.Int64Sum(ctx, "askcatalog.http.admin.denied")
	require.True(t, ok)
	assert.Equal(t, int64(1), denied)
	assert.Equal(t, int64(1), tel.Int64SumWhere(ctx, "askcatalog.http.admin.denied", routeAttr("/api/v1/index/rebuild")))
	assert.Equal(t, int64(1), tel.Int64SumWhere(ctx, "askcatalog.http.requests", routeAttr("/api/v1/index/rebuild"), classAttr("4xx")))
	assert.Equal(t, int64(1), tel.Int64SumWhere(ctx, "askcatalog.http.requests", routeAttr("/api/v1/index/rebuild"), classAttr("2xx")))
}

func TestRouteLabel(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"", http.StatusOK, unmatchedRoute},
		{"/api/v1/answer", http.StatusOK, "/api/v1/answer"},
		{"/api/v1/answer", http.StatusInternalServerError, "/api/v1/answer"},
		{"/api/v1/*", http.StatusNotFound, unmatchedRoute},
		{"/health", http.StatusMethodNotAllowed, unmatchedRoute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, routeLabel(tt.path, tt.status), "%s %d", tt.path, tt.status)
	}
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusOK))
	assert.Equal(t, "4xx", statusClass(http.StatusRequestEntityTooLarge))
	assert.Equal(t, "5xx", statusClass(http.StatusServiceUnavailable))
	assert.Equal(t, "unknown", statusClass(0))
}
