package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// TrackCommand records a command event using automatic telemetry initialization
func TrackCommand(action string, args []string) {
	// Automatically initialize telemetry if not already done
	EnsureGlobalTelemetryInitialized()

	if globalTelemetryClient != nil {
		ctx := context.Background()
		commandEvent := CommandEvent{
			Action:  action,
			Args:    args,
			Success: true, // We're tracking user intent, not outcome
		}
		globalTelemetryClient.Track(ctx, &commandEvent)
	}
}

// Global variables for simple command telemetry
var (
	globalTelemetryClient *Client
	globalTelemetryOnce   sync.Once
	globalTelemetryMu     sync.Mutex
	globalTelemetryConfig = Config{Enabled: true, Version: "unknown"}
)

// GetGlobalTelemetryClient returns the global telemetry client for adding to context
func GetGlobalTelemetryClient() *Client {
	EnsureGlobalTelemetryInitialized()
	return globalTelemetryClient
}

// SetGlobalTelemetryConfig stores the telemetry settings used by automatic
// initialization. The root command calls this after loading configuration,
// before the first event fires.
func SetGlobalTelemetryConfig(cfg Config) {
	globalTelemetryMu.Lock()
	defer globalTelemetryMu.Unlock()
	globalTelemetryConfig = cfg
	if globalTelemetryClient != nil {
		globalTelemetryClient.setVersion(cfg.Version)
	}
}

// SetGlobalTelemetryVersion sets the version for automatic telemetry initialization
// This should be called by the root package to provide the correct version
func SetGlobalTelemetryVersion(version string) {
	globalTelemetryMu.Lock()
	defer globalTelemetryMu.Unlock()
	globalTelemetryConfig.Version = version
	if globalTelemetryClient != nil {
		globalTelemetryClient.setVersion(version)
	}
}

// SetGlobalTelemetryDebugMode sets the debug mode for automatic telemetry initialization
// This should be called by the root package to pass the --debug flag state
func SetGlobalTelemetryDebugMode(debug bool) {
	globalTelemetryMu.Lock()
	defer globalTelemetryMu.Unlock()
	globalTelemetryConfig.Debug = debug
}

// EnsureGlobalTelemetryInitialized ensures telemetry is initialized exactly once
// This handles all the setup automatically - no explicit initialization needed
func EnsureGlobalTelemetryInitialized() {
	globalTelemetryOnce.Do(func() {
		globalTelemetryMu.Lock()
		cfg := globalTelemetryConfig
		globalTelemetryMu.Unlock()

		// The environment kill switch wins over configuration.
		if !GetTelemetryEnabled() {
			cfg.Enabled = false
		}

		// Use the global default logger configured by the root command
		logger := slog.Default()

		client := newClient(logger, cfg)

		globalTelemetryClient = client

		if cfg.Debug {
			NewTelemetryLogger(logger).Info("Auto-initialized telemetry", "enabled", cfg.Enabled, "debug", cfg.Debug)
		}
	})
}
