// Package http provides the local diagnostics HTTP server: health, doctor
// report, pending activity feed, queue statistics and run listing.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"github.com/allisson/agentrelay/internal/diagnostics"
	"github.com/allisson/agentrelay/internal/httputil"
	"github.com/allisson/agentrelay/internal/metrics"
	outboxDomain "github.com/allisson/agentrelay/internal/outbox/domain"
	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
)

// ActivityLister exposes the locally visible activity feed.
type ActivityLister interface {
	Activities(limit int) ([]outboxDomain.ActivityItem, error)
}

// ServerConfig groups the dependencies and settings of the diagnostics server.
type ServerConfig struct {
	Host            string
	Port            int
	Diagnostics     *diagnostics.Service
	Activities      ActivityLister
	Runs            runsUsecase.RunUseCase
	Logger          *slog.Logger
	MetricsProvider *metrics.Provider
	CORSEnabled     bool
	CORSOrigins     string
}

// Server is the diagnostics HTTP server.
type Server struct {
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the diagnostics server with its routes registered.
func NewServer(cfg ServerConfig) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(CustomLoggerMiddleware(cfg.Logger))

	if cfg.MetricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(cfg.MetricsProvider.MeterProvider(), "agentrelay"))
	}
	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSOrigins, cfg.Logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	handler := &diagnosticsHandler{
		diagnostics: cfg.Diagnostics,
		activities:  cfg.Activities,
		runs:        cfg.Runs,
		logger:      cfg.Logger,
	}

	router.GET("/healthz", handler.Health)
	v1 := router.Group("/v1")
	{
		v1.GET("/doctor", handler.Doctor)
		v1.GET("/activity", handler.Activity)
		v1.GET("/outbox/queues", handler.Queues)
		v1.GET("/runs", handler.Runs)
	}

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.server.Handler
}

// Start starts the diagnostics HTTP server.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting diagnostics server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start diagnostics server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the diagnostics HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down diagnostics server")
	return s.server.Shutdown(ctx)
}

// diagnosticsHandler handles the diagnostics routes.
type diagnosticsHandler struct {
	diagnostics *diagnostics.Service
	activities  ActivityLister
	runs        runsUsecase.RunUseCase
	logger      *slog.Logger
}

// Health reports process liveness.
func (h *diagnosticsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// Doctor returns the full doctor report.
func (h *diagnosticsHandler) Doctor(c *gin.Context) {
	report, err := h.diagnostics.Report()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Activity returns the pending activity feed, newest first.
func (h *diagnosticsHandler) Activity(c *gin.Context) {
	limit, err := httputil.ParseLimit(c)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	items, err := h.activities.Activities(limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activities": items})
}

// Queues returns per-queue pending statistics.
func (h *diagnosticsHandler) Queues(c *gin.Context) {
	report, err := h.diagnostics.Report()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"queues":        report.Queues,
		"total_pending": report.TotalPending,
	})
}

// Runs lists tracked agent runs, oldest first.
func (h *diagnosticsHandler) Runs(c *gin.Context) {
	records, err := h.runs.ListRuns(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": records})
}
