// Package http exposes the indexd HTTP surface: health, statistics,
// a read-only search API, and Prometheus metrics.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/indexd/internal/federation"
	"github.com/fyrsmithlabs/indexd/internal/registry"
)

// Server provides HTTP endpoints for indexd.
type Server struct {
	echo       *echo.Echo
	dispatcher *federation.Dispatcher
	logger     *zap.Logger
	config     *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(dispatcher *federation.Dispatcher, logger *zap.Logger, cfg *Config) (*Server, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9120,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:       e,
		dispatcher: dispatcher,
		logger:     logger,
		config:     cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/statistics", s.handleStatistics)
	v1.GET("/search", s.handleSearch)
	v1.GET("/symbols", s.handleSymbols)
}

// handleHealth reports per-repository index health. The endpoint
// itself always answers 200; degraded repositories are reported in
// the body.
func (s *Server) handleHealth(c echo.Context) error {
	report := s.dispatcher.HealthCheck(c.Request().Context())
	return c.JSON(http.StatusOK, report)
}

// handleStatistics returns aggregate index statistics.
func (s *Server) handleStatistics(c echo.Context) error {
	stats := s.dispatcher.Statistics(c.Request().Context())
	return c.JSON(http.StatusOK, stats)
}

// handleSearch runs a federated content search.
//
// Query parameters: q (required), repo (repeatable), limit.
func (s *Server) handleSearch(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q parameter is required")
	}

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := s.dispatcher.SearchCode(c.Request().Context(), query, c.QueryParams()["repo"], limit)
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSymbols runs a federated symbol lookup.
//
// Query parameters: name (required), repo (repeatable), limit.
func (s *Server) handleSymbols(c echo.Context) error {
	name := c.QueryParam("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name parameter is required")
	}

	limit, err := parseLimit(c.QueryParam("limit"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := s.dispatcher.SearchSymbol(c.Request().Context(), name, c.QueryParams()["repo"], limit)
	if err != nil {
		return searchError(err)
	}
	return c.JSON(http.StatusOK, resp)
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	var limit int
	if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil || limit < 0 {
		return 0, fmt.Errorf("limit must be a non-negative integer")
	}
	return limit, nil
}

func searchError(err error) error {
	switch {
	case errors.Is(err, federation.ErrNoTargets), errors.Is(err, registry.ErrNotRegistered):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, federation.ErrNotAuthorized):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
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
