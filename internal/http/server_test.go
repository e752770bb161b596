package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/catalog"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/pipeline"
	"github.com/fyrsmithlabs/askcatalog/internal/vectorindex"
)

// fakePipeline answers with a fixed string and records the conversation the
// way the coordinator does.
type fakePipeline struct {
	mu         sync.Mutex
	answer     string
	err        error
	rebuildErr error
	state      *pipeline.State
	questions  []string
	rebuilds   int
}

func (f *fakePipeline) Answer(_ context.Context, query string, conv *memory.Conversation) (string, error) {
	f.mu.Lock()
	f.questions = append(f.questions, query)
	f.mu.Unlock()
	if conv != nil {
		conv.Record(memory.RoleUser, query)
	}
	if f.err != nil {
		return "", f.err
	}
	if conv != nil {
		conv.Record(memory.RoleAssistant, f.answer)
	}
	return f.answer, nil
}

func (f *fakePipeline) Rebuild(context.Context) (*pipeline.State, error) {
	f.mu.Lock()
	f.rebuilds++
	f.mu.Unlock()
	if f.rebuildErr != nil {
		return nil, f.rebuildErr
	}
	return f.state, nil
}

type unitEmbedder struct{}

func (unitEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func testState(t *testing.T) *pipeline.State {
	t.Helper()
	entries := []catalog.Entry{
		catalog.CapabilityEntry(catalog.CapabilityRecord{ID: "cap1", Name: "Storage", Category: "infra", Description: "object storage"}),
		catalog.ApplicationEntry(catalog.ApplicationRecord{ID: "app1", Name: "Bucket", Description: "stores objects", Technologies: []string{"Storage"}}),
	}
	cat, err := catalog.New(entries)
	require.NoError(t, err)
	idx, err := vectorindex.Build(context.Background(), unitEmbedder{}, entries, vectorindex.Options{ModelID: "test"})
	require.NoError(t, err)
	return &pipeline.State{Catalog: cat, Index: idx, Origin: pipeline.OriginBuilt, Version: 3}
}

const testAdminToken = "admin-secret"

var adminHeader = http.Header{"Authorization": {"Bearer " + testAdminToken}}

func setupTestServer(t *testing.T, p *fakePipeline) (*Server, *memory.Sessions) {
	t.Helper()

	sessions := memory.NewSessions(5, time.Hour, nil, nil)
	cfg := &Config{
		Host:       "localhost",
		Port:       8000,
		AdminToken: testAdminToken,
	}

	server, err := NewServer(p, sessions, zap.NewNop(), cfg)
	require.NoError(t, err)

	return server, sessions
}

func postJSON(t *testing.T, s *Server, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func TestNewServer(t *testing.T) {
	t.Run("creates server with valid config", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 8000}

		server, err := NewServer(&fakePipeline{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, server.echo)
		assert.Equal(t, cfg, server.config)
		assert.Equal(t, "1M", server.config.BodyLimit)
	})

	t.Run("uses defaults when config is nil", func(t *testing.T) {
		server, err := NewServer(&fakePipeline{}, nil, zap.NewNop(), nil)
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", server.config.Host)
		assert.Equal(t, 8000, server.config.Port)
	})

	t.Run("returns error when logger is nil", func(t *testing.T) {
		_, err := NewServer(&fakePipeline{}, nil, nil, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logger is required")
	})

	t.Run("returns error when pipeline is nil", func(t *testing.T) {
		_, err := NewServer(nil, nil, zap.NewNop(), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline cannot be nil")
	})
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTestServer(t, &fakePipeline{})

	for path, want := range map[string]string{"/health": "ok", "/": "Backend running"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, want, resp.Status)
	}
}

func TestHandleAnswer(t *testing.T) {
	t.Run("answers on both routes", func(t *testing.T) {
		p := &fakePipeline{answer: "Use Bucket for object storage."}
		server, _ := setupTestServer(t, p)

		for _, path := range []string{"/api/v1/answer", "/ask"} {
			rec := postJSON(t, server, path, AnswerRequest{Question: "I need to store files"}, nil)
			assert.Equal(t, http.StatusOK, rec.Code, path)

			var resp AnswerResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "Use Bucket for object storage.", resp.Answer)
		}
		assert.Equal(t, []string{"I need to store files", "I need to store files"}, p.questions)
	})

	t.Run("rejects empty question", func(t *testing.T) {
		p := &fakePipeline{}
		server, _ := setupTestServer(t, p)

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "   "}, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp map[string]interface{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "question field is required")
		assert.Empty(t, p.questions)
	})

	t.Run("rejects invalid json", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{})

		req := httptest.NewRequest(http.MethodPost, "/api/v1/answer", strings.NewReader("invalid json"))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		server.echo.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pipeline failure is a generic 500", func(t *testing.T) {
		p := &fakePipeline{err: errors.New("synthesizer stage: upstream 502 from 10.0.0.7")}
		server, _ := setupTestServer(t, p)

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "10.0.0.7")

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "failed to answer question", resp.Error)
	})
}

func TestSessions(t *testing.T) {
	t.Run("generates and echoes a session id", func(t *testing.T) {
		server, sessions := setupTestServer(t, &fakePipeline{answer: "a"})

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		id := rec.Header().Get(HeaderSessionID)
		assert.Len(t, id, 36)
		assert.Equal(t, 1, sessions.Len())
	})

	t.Run("reuses the caller's session", func(t *testing.T) {
		server, sessions := setupTestServer(t, &fakePipeline{answer: "a"})
		header := http.Header{HeaderSessionID: []string{"session-42"}}

		for i := 0; i < 2; i++ {
			rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, header)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "session-42", rec.Header().Get(HeaderSessionID))
		}
		assert.Equal(t, 1, sessions.Len())
		assert.Len(t, sessions.Get("session-42").Window(), 4)
	})

	t.Run("replaces an invalid session id", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{answer: "a"})
		header := http.Header{HeaderSessionID: []string{"../../etc/passwd"}}

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"}, header)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotEqual(t, "../../etc/passwd", rec.Header().Get(HeaderSessionID))
	})

	t.Run("works without a session registry", func(t *testing.T) {
		server, err := NewServer(&fakePipeline{answer: "a"}, nil, zap.NewNop(), nil)
		require.NoError(t, err)

		rec := postJSON(t, server, "/ask", AnswerRequest{Question: "q"}, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestHandleRebuild(t *testing.T) {
	t.Run("reports the new state", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{state: testState(t)})

		rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, adminHeader)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RebuildResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, RebuildResponse{Version: 3, Origin: "built", Rows: 2}, resp)
	})

	t.Run("conflict while another rebuild runs", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{rebuildErr: pipeline.ErrRebuildInProgress})

		rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, adminHeader)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("failure is a generic 500", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{rebuildErr: errors.New("catalog source failed: /srv/x.json")})

		rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, adminHeader)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "/srv/x.json")
	})
}

func TestHandleRebuild_RequiresAdminToken(t *testing.T) {
	tests := []struct {
		name   string
		header http.Header
	}{
		{name: "no authorization header", header: nil},
		{name: "wrong token", header: http.Header{"Authorization": {"Bearer nope"}}},
		{name: "wrong scheme", header: http.Header{"Authorization": {"Basic " + testAdminToken}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePipeline{state: testState(t)}
			server, _ := setupTestServer(t, p)

			rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"unauthorized"}`, rec.Body.String())
			assert.Zero(t, p.rebuilds)
		})
	}
}

func TestHandleRebuild_DisabledWithoutAdminToken(t *testing.T) {
	p := &fakePipeline{state: testState(t)}
	server, err := NewServer(p, nil, zap.NewNop(), &Config{Host: "localhost", Port: 8000})
	require.NoError(t, err)

	rec := postJSON(t, server, "/api/v1/index/rebuild", struct{}{}, adminHeader)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, p.rebuilds)
}

func TestServerLifecycle(t *testing.T) {
	t.Run("starts and shuts down gracefully", func(t *testing.T) {
		cfg := &Config{
			Host: "localhost",
			Port: 0, // Use random available port
		}

		server, err := NewServer(&fakePipeline{}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)

		errChan := make(chan error, 1)
		go func() {
			errChan <- server.Start()
		}()

		time.Sleep(100 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = server.Shutdown(ctx)
		assert.NoError(t, err)

		select {
		case err := <-errChan:
			assert.True(t, err == nil || err == http.ErrServerClosed)
		case <-time.After(6 * time.Second):
			t.Fatal("server did not shut down in time")
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("adds request ID to response", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()

		server.echo.ServeHTTP(rec, req)

		assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
	})

	t.Run("recovers from panic", func(t *testing.T) {
		server, _ := setupTestServer(t, &fakePipeline{})

		server.echo.GET("/panic", func(c echo.Context) error {
			panic("test panic")
		})

		req := httptest.NewRequest(http.MethodGet, "/panic", nil)
		rec := httptest.NewRecorder()

		assert.NotPanics(t, func() {
			server.echo.ServeHTTP(rec, req)
		})

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("CORS exposes the session header", func(t *testing.T) {
		cfg := &Config{Host: "localhost", Port: 8000, AllowedOrigins: []string{"http://localhost:3000"}}
		server, err := NewServer(&fakePipeline{answer: "a"}, nil, zap.NewNop(), cfg)
		require.NoError(t, err)

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: "q"},
			http.Header{"Origin": []string{"http://localhost:3000"}})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
		assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlExposeHeaders), HeaderSessionID)
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		p := &fakePipeline{answer: "a"}
		cfg := &Config{Host: "localhost", Port: 8000, BodyLimit: "1K"}
		server, err := NewServer(p, nil, zap.NewNop(), cfg)
		require.NoError(t, err)

		rec := postJSON(t, server, "/api/v1/answer", AnswerRequest{Question: strings.Repeat("x", 4096)}, nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		assert.Empty(t, p.questions)
	})
}
