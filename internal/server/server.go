// Package server provides the HTTP API for submitting documents for
// analysis and reading job status.
//
// The server is an Echo router with standard middleware, Prometheus
// metrics at /metrics, a health check at /health and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/docstore"
	"github.com/fyrsmithlabs/lexd/internal/job"
)

// serviceName is reported by the health endpoint.
const serviceName = "lexd"

// maxDocumentBytes bounds submitted document text.
const maxDocumentBytes = 2 << 20

// Config configures the HTTP server.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            8080,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP boundary over the job service. Submissions write a
// PENDING record and return immediately; the runner executes the
// pipeline in the background.
type Server struct {
	config *Config
	jobs   job.Service
	runner *job.Runner
	logger *zap.Logger
	echo   *echo.Echo
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(cfg *Config, jobs job.Service, runner *job.Runner, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if jobs == nil {
		return nil, errors.New("job service is required")
	}
	if runner == nil {
		return nil, errors.New("job runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", maxDocumentBytes)))

	s := &Server{
		config: cfg,
		jobs:   jobs,
		runner: runner,
		logger: logger,
		echo:   e,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/v1")
	v1.POST("/analyses", s.handleSubmit)
	v1.GET("/analyses/:document_id", s.handleStatus)
	v1.POST("/analyses/:document_id/cancel", s.handleCancel)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: serviceName})
}

// handleSubmit handles POST /v1/analyses requests. Accepted submissions
// return 202 with the job record; duplicates of a live or terminal job
// return 200 with the existing record.
func (s *Server) handleSubmit(c echo.Context) error {
	timer := time.Now()
	defer func() {
		RequestDuration.WithLabelValues("submit").Observe(time.Since(timer).Seconds())
	}()

	var req SubmitRequest
	if err := c.Bind(&req); err != nil {
		SubmissionsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if err := validateSubmit(&req); err != nil {
		SubmissionsTotal.WithLabelValues("rejected").Inc()
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	key := docstore.Key{DocumentID: req.DocumentID, UserID: req.UserID, JobType: req.JobType}
	record, created, err := s.jobs.Submit(c.Request().Context(), key, req.Force)
	if err != nil {
		SubmissionsTotal.WithLabelValues("rejected").Inc()
		s.logger.Error("submission failed", zap.String("key", key.String()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "submission failed"})
	}

	if !created {
		// Existing live or terminal record; its run, if any, is already
		// scheduled. Dispatching again would race a second pipeline
		// execution for the same key.
		SubmissionsTotal.WithLabelValues("duplicate").Inc()
		return c.JSON(http.StatusOK, record)
	}

	s.runner.Dispatch(key, req.DocumentText, req.DocumentType)
	SubmissionsTotal.WithLabelValues("accepted").Inc()

	return c.JSON(http.StatusAccepted, record)
}

// handleStatus handles GET /v1/analyses/:document_id requests. The user
// id and job type arrive as query parameters.
func (s *Server) handleStatus(c echo.Context) error {
	timer := time.Now()
	defer func() {
		RequestDuration.WithLabelValues("status").Observe(time.Since(timer).Seconds())
	}()

	key := docstore.Key{
		DocumentID: c.Param("document_id"),
		UserID:     c.QueryParam("user_id"),
		JobType:    c.QueryParam("job_type"),
	}
	if key.JobType == "" {
		key.JobType = job.TypeAnalysis
	}
	if err := validateKey(key); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	record, err := s.jobs.Status(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			StatusLookupsTotal.WithLabelValues("not_found").Inc()
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
		}
		s.logger.Error("status lookup failed", zap.String("key", key.String()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "status lookup failed"})
	}

	StatusLookupsTotal.WithLabelValues("found").Inc()
	return c.JSON(http.StatusOK, record)
}

// handleCancel handles POST /v1/analyses/:document_id/cancel requests.
func (s *Server) handleCancel(c echo.Context) error {
	var req CancelRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}

	key := docstore.Key{
		DocumentID: c.Param("document_id"),
		UserID:     req.UserID,
		JobType:    req.JobType,
	}
	if key.JobType == "" {
		key.JobType = job.TypeAnalysis
	}
	if err := validateKey(key); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	}

	record, err := s.jobs.Cancel(c.Request().Context(), key, req.Reason)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: "job not found"})
		}
		s.logger.Error("cancel failed", zap.String("key", key.String()), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "cancel failed"})
	}

	return c.JSON(http.StatusOK, record)
}

// validateSubmit checks the submission body.
func validateSubmit(req *SubmitRequest) error {
	if req.JobType == "" {
		req.JobType = job.TypeAnalysis
	}
	if !job.ValidJobType(req.JobType) {
		return fmt.Errorf("unknown job_type %q", req.JobType)
	}
	if req.DocumentText == "" {
		return errors.New("document_text is required")
	}
	if req.DocumentType == "" {
		return errors.New("document_type is required")
	}
	return validateKey(docstore.Key{
		DocumentID: req.DocumentID,
		UserID:     req.UserID,
		JobType:    req.JobType,
	})
}

// validateKey rejects empty key parts and separator characters that
// would collide in store keys.
func validateKey(key docstore.Key) error {
	for name, part := range map[string]string{
		"document_id": key.DocumentID,
		"user_id":     key.UserID,
		"job_type":    key.JobType,
	} {
		if part == "" {
			return fmt.Errorf("%s is required", name)
		}
		if strings.ContainsAny(part, ":.") {
			return fmt.Errorf("%s must not contain ':' or '.'", name)
		}
	}
	return nil
}

// Start starts the HTTP server and blocks until context is cancelled.
// Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
