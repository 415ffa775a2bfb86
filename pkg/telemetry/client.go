package telemetry

import (
	"cmp"
	"context"
	"log/slog"
	"net/http"
	"time"
)

// telemetryLogger wraps slog.Logger to automatically prepend "[Telemetry]" to all messages
type telemetryLogger struct {
	logger *slog.Logger
}

// NewTelemetryLogger creates a new telemetry logger that automatically prepends "[Telemetry]" to all messages
func NewTelemetryLogger(logger *slog.Logger) *telemetryLogger {
	return &telemetryLogger{logger: logger}
}

// Debug logs a debug message with "[Telemetry]" prefix
func (tl *telemetryLogger) Debug(msg string, args ...any) {
	tl.logger.Debug("[Telemetry] "+msg, args...)
}

// Info logs an info message with "[Telemetry]" prefix
func (tl *telemetryLogger) Info(msg string, args ...any) {
	tl.logger.Info("[Telemetry] "+msg, args...)
}

// Warn logs a warning message with "[Telemetry]" prefix
func (tl *telemetryLogger) Warn(msg string, args ...any) {
	tl.logger.Warn("[Telemetry] "+msg, args...)
}

// Error logs an error message with "[Telemetry]" prefix
func (tl *telemetryLogger) Error(msg string, args ...any) {
	tl.logger.Error("[Telemetry] "+msg, args...)
}

// Enabled returns whether the logger is enabled for the given level
func (tl *telemetryLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return tl.logger.Enabled(ctx, level)
}

// Config selects where telemetry events go. Events are only sent over HTTP
// when an endpoint is configured; otherwise they are logged locally.
type Config struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	// Header is the name of the authentication header, x-api-key by
	// default.
	Header  string
	Debug   bool
	Version string
}

func newClient(logger *slog.Logger, cfg Config, customHTTPClient ...HTTPClient) *Client {
	telemetryLogger := NewTelemetryLogger(logger)

	if !cfg.Enabled {
		return &Client{
			logger:  telemetryLogger,
			enabled: false,
			version: cfg.Version,
		}
	}

	var httpClient HTTPClient
	if len(customHTTPClient) > 0 && customHTTPClient[0] != nil {
		httpClient = customHTTPClient[0]
	} else {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	client := &Client{
		logger:     telemetryLogger,
		userUUID:   getUserUUID(),
		enabled:    true,
		debugMode:  cfg.Debug,
		httpClient: httpClient,
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		header:     cmp.Or(cfg.Header, "x-api-key"),
		version:    cfg.Version,
	}

	telemetryLogger.Debug("Telemetry client created", "has_endpoint", cfg.Endpoint != "")

	return client
}

// New builds a telemetry client from configuration. A disabled client is a
// safe no-op.
func New(logger *slog.Logger, cfg Config, customHTTPClient ...HTTPClient) *Client {
	return newClient(logger, cfg, customHTTPClient...)
}
