package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/agentrelay/internal/config"
	"github.com/allisson/agentrelay/internal/testutil"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dirs := testutil.SetupDataDir(t)
	return &config.Config{
		ServerHost:            "127.0.0.1",
		ServerPort:            0,
		DataDir:               dirs.Root,
		GatewayBaseURL:        "http://127.0.0.1:0",
		GatewayToken:          "test-token",
		GatewayTimeout:        time.Second,
		GatewayRequestsPerSec: 100,
		GatewayBurst:          10,
		SyncInterval:          time.Minute,
		DefaultInitiativeID:   "0195e7a3-1f7a-7bbf-9a1e-2f2f51a7b001",
		SourceClient:          "claude_code",
		LogLevel:              "error",
		MetricsEnabled:        false,
		MetricsNamespace:      "agentrelay",
	}
}

func TestContainer(t *testing.T) {
	t.Run("components-are-lazy-singletons", func(t *testing.T) {
		container := NewContainer(newTestConfig(t))

		assert.Same(t, container.Logger(), container.Logger())
		assert.Same(t, container.Store(), container.Store())
		assert.Same(t, container.QueueRepository(), container.QueueRepository())
		assert.Same(t, container.RunRepository(), container.RunRepository())
		assert.Same(t, container.GatewayClient(), container.GatewayClient())
	})

	t.Run("use-cases-and-servers-assemble", func(t *testing.T) {
		container := NewContainer(newTestConfig(t))

		emitter, err := container.EmitterUseCase()
		require.NoError(t, err)
		assert.NotNil(t, emitter)

		replay, err := container.ReplayUseCase()
		require.NoError(t, err)
		assert.NotNil(t, replay)

		runs, err := container.RunUseCase()
		require.NoError(t, err)
		assert.NotNil(t, runs)

		sched, err := container.Scheduler()
		require.NoError(t, err)
		assert.NotNil(t, sched)

		server, err := container.HTTPServer()
		require.NoError(t, err)
		assert.NotNil(t, server)
	})

	t.Run("metrics-disabled-yields-nil-servers", func(t *testing.T) {
		container := NewContainer(newTestConfig(t))

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.Nil(t, provider)

		metricsServer, err := container.MetricsServer()
		require.NoError(t, err)
		assert.Nil(t, metricsServer)
	})

	t.Run("metrics-enabled-builds-provider-and-server", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.MetricsEnabled = true
		container := NewContainer(cfg)
		defer func() { _ = container.Shutdown(context.Background()) }()

		provider, err := container.MetricsProvider()
		require.NoError(t, err)
		assert.NotNil(t, provider)

		metricsServer, err := container.MetricsServer()
		require.NoError(t, err)
		assert.NotNil(t, metricsServer)
	})

	t.Run("shutdown-without-initialized-components", func(t *testing.T) {
		container := NewContainer(newTestConfig(t))
		assert.NoError(t, container.Shutdown(context.Background()))
	})
}
