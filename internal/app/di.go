// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/agentrelay/internal/config"
	"github.com/allisson/agentrelay/internal/diagnostics"
	"github.com/allisson/agentrelay/internal/gateway"
	"github.com/allisson/agentrelay/internal/http"
	"github.com/allisson/agentrelay/internal/metrics"
	outboxRepository "github.com/allisson/agentrelay/internal/outbox/repository"
	outboxUsecase "github.com/allisson/agentrelay/internal/outbox/usecase"
	"github.com/allisson/agentrelay/internal/persistence"
	reportingDomain "github.com/allisson/agentrelay/internal/reporting/domain"
	reportingUsecase "github.com/allisson/agentrelay/internal/reporting/usecase"
	runsRepository "github.com/allisson/agentrelay/internal/runs/repository"
	runsUsecase "github.com/allisson/agentrelay/internal/runs/usecase"
	"github.com/allisson/agentrelay/internal/scheduler"
	"github.com/allisson/agentrelay/internal/transcript"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger          *slog.Logger
	store           *persistence.Store
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics
	gatewayClient   *gateway.HTTPClient

	// Repositories
	queueRepo *outboxRepository.FileQueueRepository
	runRepo   *runsRepository.FileRunRepository

	// Use Cases
	emitterUseCase reportingUsecase.EmitterUseCase
	replayUseCase  outboxUsecase.ReplayUseCase
	runUseCase     runsUsecase.RunUseCase

	// Services
	scheduler   *scheduler.Scheduler
	diagnostics *diagnostics.Service

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                   sync.Mutex
	loggerInit           sync.Once
	storeInit            sync.Once
	metricsProviderInit  sync.Once
	businessMetricsInit  sync.Once
	gatewayClientInit    sync.Once
	queueRepoInit        sync.Once
	runRepoInit          sync.Once
	emitterUseCaseInit   sync.Once
	replayUseCaseInit    sync.Once
	runUseCaseInit       sync.Once
	schedulerInit        sync.Once
	diagnosticsInit      sync.Once
	httpServerInit       sync.Once
	metricsServerInit    sync.Once
	initErrors           map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Store returns the atomic persistence store underlying every durable write.
func (c *Container) Store() *persistence.Store {
	c.storeInit.Do(func() {
		c.store = persistence.NewStore(c.Logger())
	})
	return c.store
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder, no-op when disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		provider, providerErr := c.MetricsProvider()
		if providerErr != nil {
			c.initErrors["businessMetrics"] = providerErr
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		c.businessMetrics, err = metrics.NewBusinessMetrics(
			provider.MeterProvider(), c.config.MetricsNamespace,
		)
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// GatewayClient returns the HTTP reporting gateway client.
func (c *Container) GatewayClient() *gateway.HTTPClient {
	c.gatewayClientInit.Do(func() {
		c.gatewayClient = gateway.NewHTTPClient(gateway.HTTPClientConfig{
			BaseURL:        c.config.GatewayBaseURL,
			Token:          c.config.GatewayToken,
			Timeout:        c.config.GatewayTimeout,
			RequestsPerSec: c.config.GatewayRequestsPerSec,
			Burst:          c.config.GatewayBurst,
		}, c.Logger())
	})
	return c.gatewayClient
}

// QueueRepository returns the file-backed outbox queue repository.
func (c *Container) QueueRepository() *outboxRepository.FileQueueRepository {
	c.queueRepoInit.Do(func() {
		c.queueRepo = outboxRepository.NewFileQueueRepository(c.config.OutboxDir(), c.Store(), c.Logger())
	})
	return c.queueRepo
}

// RunRepository returns the file-backed agent-run record repository.
func (c *Container) RunRepository() *runsRepository.FileRunRepository {
	c.runRepoInit.Do(func() {
		c.runRepo = runsRepository.NewFileRunRepository(c.config.RunsFile(), c.Store())
	})
	return c.runRepo
}

// EmitterUseCase returns the live-path emitter use case.
func (c *Container) EmitterUseCase() (reportingUsecase.EmitterUseCase, error) {
	var err error
	c.emitterUseCaseInit.Do(func() {
		c.emitterUseCase, err = c.initEmitterUseCase()
		if err != nil {
			c.initErrors["emitterUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["emitterUseCase"]; exists {
		return nil, storedErr
	}
	return c.emitterUseCase, nil
}

// ReplayUseCase returns the replay engine.
func (c *Container) ReplayUseCase() (outboxUsecase.ReplayUseCase, error) {
	var err error
	c.replayUseCaseInit.Do(func() {
		c.replayUseCase, err = c.initReplayUseCase()
		if err != nil {
			c.initErrors["replayUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["replayUseCase"]; exists {
		return nil, storedErr
	}
	return c.replayUseCase, nil
}

// RunUseCase returns the run tracking and reconciliation use case.
func (c *Container) RunUseCase() (runsUsecase.RunUseCase, error) {
	var err error
	c.runUseCaseInit.Do(func() {
		c.runUseCase, err = c.initRunUseCase()
		if err != nil {
			c.initErrors["runUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["runUseCase"]; exists {
		return nil, storedErr
	}
	return c.runUseCase, nil
}

// Scheduler returns the single-flight sync scheduler.
func (c *Container) Scheduler() (*scheduler.Scheduler, error) {
	var err error
	c.schedulerInit.Do(func() {
		c.scheduler, err = c.initScheduler()
		if err != nil {
			c.initErrors["scheduler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["scheduler"]; exists {
		return nil, storedErr
	}
	return c.scheduler, nil
}

// Diagnostics returns the doctor report service.
func (c *Container) Diagnostics() (*diagnostics.Service, error) {
	var err error
	c.diagnosticsInit.Do(func() {
		c.diagnostics, err = c.initDiagnostics()
		if err != nil {
			c.initErrors["diagnostics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["diagnostics"]; exists {
		return nil, storedErr
	}
	return c.diagnostics, nil
}

// HTTPServer returns the diagnostics HTTP server instance.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server, or nil when metrics
// are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		provider, providerErr := c.MetricsProvider()
		if providerErr != nil {
			c.initErrors["metricsServer"] = providerErr
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = http.NewMetricsServer(
			c.config.ServerHost, c.config.MetricsPort, c.Logger(), provider,
		)
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("diagnostics server shutdown: %w", err))
		}
	}

	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initEmitterUseCase creates the live-path emitter with all its dependencies.
func (c *Container) initEmitterUseCase() (reportingUsecase.EmitterUseCase, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for emitter use case: %w", err)
	}

	resolver := reportingUsecase.NewContextResolver(
		c.config.DefaultInitiativeID,
		reportingDomain.SourceClient(c.config.SourceClient),
	)
	credentialed := c.config.GatewayToken != ""

	useCase := reportingUsecase.NewEmitterUseCase(
		c.GatewayClient(),
		c.QueueRepository(),
		resolver,
		credentialed,
		c.Logger(),
	)
	return reportingUsecase.NewEmitterUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initReplayUseCase creates the replay engine with all its dependencies.
func (c *Container) initReplayUseCase() (outboxUsecase.ReplayUseCase, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for replay use case: %w", err)
	}

	useCase := outboxUsecase.NewReplayUseCase(
		c.QueueRepository(),
		c.GatewayClient(),
		c.Logger(),
	)
	return outboxUsecase.NewReplayUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initRunUseCase creates the run use case with all its dependencies.
func (c *Container) initRunUseCase() (runsUsecase.RunUseCase, error) {
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics for run use case: %w", err)
	}

	emitter, err := c.EmitterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get emitter use case for run use case: %w", err)
	}

	useCase := runsUsecase.NewRunUseCase(
		c.RunRepository(),
		runsUsecase.NewSignalProbe(),
		transcript.NewReader(c.config.SessionsDir()),
		emitter,
		c.Logger(),
	)
	return runsUsecase.NewRunUseCaseWithMetrics(useCase, businessMetrics), nil
}

// initScheduler creates the sync scheduler with all its dependencies.
func (c *Container) initScheduler() (*scheduler.Scheduler, error) {
	runUseCase, err := c.RunUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get run use case for scheduler: %w", err)
	}

	replayUseCase, err := c.ReplayUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get replay use case for scheduler: %w", err)
	}

	return scheduler.New(
		runUseCase,
		c.GatewayClient(),
		replayUseCase,
		c.config.DefaultInitiativeID,
		c.config.SyncInterval,
		c.Logger(),
	), nil
}

// initDiagnostics creates the doctor report service.
func (c *Container) initDiagnostics() (*diagnostics.Service, error) {
	replayUseCase, err := c.ReplayUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get replay use case for diagnostics: %w", err)
	}

	sched, err := c.Scheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to get scheduler for diagnostics: %w", err)
	}

	return diagnostics.NewService(
		c.QueueRepository(),
		replayUseCase,
		c.RunRepository(),
		c.GatewayClient(),
		sched,
	), nil
}

// initHTTPServer creates the diagnostics HTTP server.
func (c *Container) initHTTPServer() (*http.Server, error) {
	diagnosticsService, err := c.Diagnostics()
	if err != nil {
		return nil, fmt.Errorf("failed to get diagnostics service for http server: %w", err)
	}

	runUseCase, err := c.RunUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get run use case for http server: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
	}

	return http.NewServer(http.ServerConfig{
		Host:            c.config.ServerHost,
		Port:            c.config.ServerPort,
		Diagnostics:     diagnosticsService,
		Activities:      c.QueueRepository(),
		Runs:            runUseCase,
		Logger:          c.Logger(),
		MetricsProvider: metricsProvider,
		CORSEnabled:     c.config.CORSEnabled,
		CORSOrigins:     c.config.CORSAllowOrigins,
	}), nil
}
