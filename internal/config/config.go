// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the diagnostics server will bind to.
	ServerHost string
	// ServerPort is the port number the diagnostics server will listen on.
	ServerPort int

	// DataDir is the root directory for all durable relay state
	// (outbox queues, run records, session transcripts).
	DataDir string

	// GatewayBaseURL is the base URL of the remote reporting gateway.
	GatewayBaseURL string
	// GatewayToken is the bearer token used to authenticate gateway calls.
	GatewayToken string
	// GatewayTimeout bounds every remote call; a call exceeding it is
	// treated as a transient failure and the event is buffered.
	GatewayTimeout time.Duration
	// GatewayRequestsPerSec paces outgoing gateway requests during replay.
	GatewayRequestsPerSec float64
	// GatewayBurst is the burst size for gateway request pacing.
	GatewayBurst int

	// SyncInterval is the period of the scheduled reconcile/refresh/flush pass.
	SyncInterval time.Duration

	// DefaultInitiativeID is the fallback initiative used when a caller does
	// not supply one and none can be inferred from the agent context.
	DefaultInitiativeID string
	// SourceClient identifies which local agent runtime produced events.
	SourceClient string

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// CORSEnabled indicates whether CORS is enabled on the diagnostics server.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "127.0.0.1"),
		ServerPort: env.GetInt("SERVER_PORT", 8080),

		// Durable state
		DataDir: env.GetString("DATA_DIR", defaultDataDir()),

		// Reporting gateway
		GatewayBaseURL:        env.GetString("GATEWAY_BASE_URL", "https://api.example.com"),
		GatewayToken:          env.GetString("GATEWAY_TOKEN", ""),
		GatewayTimeout:        env.GetDuration("GATEWAY_TIMEOUT_SECONDS", 15, time.Second),
		GatewayRequestsPerSec: env.GetFloat64("GATEWAY_REQUESTS_PER_SEC", 10.0),
		GatewayBurst:          env.GetInt("GATEWAY_BURST", 20),

		// Sync scheduling
		SyncInterval: env.GetDuration("SYNC_INTERVAL_SECONDS", 60, time.Second),

		// Identity defaults
		DefaultInitiativeID: env.GetString("DEFAULT_INITIATIVE_ID", ""),
		SourceClient:        env.GetString("SOURCE_CLIENT", "claude_code"),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "agentrelay"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	case "info", "warn", "error":
		return "release"
	default:
		return "release"
	}
}

// OutboxDir returns the directory holding outbox queue files.
func (c *Config) OutboxDir() string {
	return filepath.Join(c.DataDir, "outbox")
}

// RunsFile returns the path of the durable agent-run records file.
func (c *Config) RunsFile() string {
	return filepath.Join(c.DataDir, "runs.json")
}

// SessionsDir returns the directory holding local session transcripts.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// defaultDataDir resolves the default durable state directory under the
// user's home directory, falling back to the working directory.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentrelay"
	}
	return filepath.Join(home, ".agentrelay")
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	// Get current working directory
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// Search for .env file recursively up the directory tree
	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			// .env file found, load it
			_ = godotenv.Load(envPath)
			return
		}

		// Move to parent directory
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root directory
			break
		}
		dir = parent
	}
}
