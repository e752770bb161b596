// Package http exposes the answer pipeline over HTTP.
package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askcatalog/internal/logging"
	"github.com/fyrsmithlabs/askcatalog/internal/memory"
	"github.com/fyrsmithlabs/askcatalog/internal/pipeline"
)

// HeaderSessionID carries the conversation session across requests.
const HeaderSessionID = "X-Session-ID"

// Pipeline is the part of the coordinator the server drives.
type Pipeline interface {
	Answer(ctx context.Context, query string, conv *memory.Conversation) (string, error)
	Rebuild(ctx context.Context) (*pipeline.State, error)
}

// Server provides HTTP endpoints for askcatalog.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	sessions *memory.Sessions
	logger   *zap.Logger
	config   *Config
	metrics  *requestMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
	// BodyLimit caps request bodies, in echo's size notation ("1M").
	BodyLimit string
	// AdminToken is the bearer token for administrative routes. When empty
	// those routes are not registered.
	AdminToken string
	// Meter records request metrics. Defaults to the global meter provider.
	Meter metric.Meter
}

// NewServer creates a new HTTP server. sessions may be nil, in which case
// nothing is remembered between requests.
func NewServer(p Pipeline, sessions *memory.Sessions, logger *zap.Logger, cfg *Config) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8000,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}
	metrics := newRequestMetrics(meter, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	if len(cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  cfg.AllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderContentType, HeaderSessionID},
			ExposeHeaders: []string{HeaderSessionID},
		}))
	}
	e.Use(metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			// Write the error response here so the logged and measured
			// status is the one the client gets.
			if err := next(c); err != nil {
				c.Error(err)
			}
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return nil
		}
	})

	s := &Server{
		echo:     e,
		pipeline: p,
		sessions: sessions,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/ask", s.handleAnswer)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/answer", s.handleAnswer)

	if s.config.AdminToken != "" {
		v1.POST("/index/rebuild", s.handleRebuild, s.adminAuth())
	}
}

// adminAuth requires "Authorization: Bearer <AdminToken>".
func (s *Server) adminAuth() echo.MiddlewareFunc {
	token := []byte(s.config.AdminToken)
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		Validator: func(key string, c echo.Context) (bool, error) {
			return subtle.ConstantTimeCompare([]byte(key), token) == 1, nil
		},
		ErrorHandler: func(err error, c echo.Context) error {
			s.logger.Warn("rejected admin request",
				zap.String("path", c.Path()),
				zap.String("remote_ip", c.RealIP()))
			s.metrics.adminDenied(c.Request().Context(), c.Path())
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		},
	})
}

// Echo returns the underlying echo instance for additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "Backend running"})
}

// handleHealth is a static liveness check.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleAnswer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid answer request", zap.Error(err))
		s.metrics.answer(c.Request().Context(), outcomeInvalid, sessionNone)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		s.metrics.answer(c.Request().Context(), outcomeInvalid, sessionNone)
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	sessionID := c.Request().Header.Get(HeaderSessionID)
	origin := sessionProvided
	if !logging.ValidID(sessionID) {
		sessionID = uuid.NewString()
		origin = sessionGenerated
	}
	c.Response().Header().Set(HeaderSessionID, sessionID)

	ctx := logging.WithSessionID(c.Request().Context(), sessionID)
	ctx = logging.WithRequestID(ctx, c.Response().Header().Get(echo.HeaderXRequestID))

	var conv *memory.Conversation
	if s.sessions != nil {
		conv = s.sessions.Get(sessionID)
	}

	answer, err := s.pipeline.Answer(ctx, req.Question, conv)
	if err != nil {
		s.logger.Error("answer failed",
			zap.String("session_id", sessionID),
			zap.Error(err))
		s.metrics.answer(ctx, outcomeFailed, origin)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "failed to answer question"})
	}
	s.metrics.answer(ctx, outcomeAnswered, origin)
	return c.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}

func (s *Server) handleRebuild(c echo.Context) error {
	state, err := s.pipeline.Rebuild(c.Request().Context())
	switch {
	case errors.Is(err, pipeline.ErrRebuildInProgress):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Error("rebuild failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "rebuild failed"})
	}
	return c.JSON(http.StatusOK, RebuildResponse{
		Version: state.Version,
		Origin:  string(state.Origin),
		Rows:    state.Index.Len(),
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
