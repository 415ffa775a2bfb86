// Package config loads and validates the runtime configuration file.
package config

import (
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentcore/agentcore/pkg/api"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "30m" or "90s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(data []byte) error {
	var raw string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(time.Duration(d).String())
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// RecoveryStore selects where cleared chat sessions are archived.
type RecoveryStore struct {
	Kind     string   `yaml:"kind,omitempty"`
	Path     string   `yaml:"path,omitempty"`
	Addr     string   `yaml:"addr,omitempty"`
	Password string   `yaml:"password,omitempty"`
	DB       int      `yaml:"db,omitempty"`
	TTL      Duration `yaml:"ttl,omitempty"`
}

// MCPServer describes one MCP toolset: either a local command to spawn
// or a remote endpoint.
type MCPServer struct {
	Command   string            `yaml:"command,omitempty"`
	Args      []string          `yaml:"args,omitempty"`
	Env       []string          `yaml:"env,omitempty"`
	URL       string            `yaml:"url,omitempty"`
	Transport string            `yaml:"transport,omitempty"`
	Headers   map[string]string `yaml:"headers,omitempty"`
}

// Telemetry configures the usage event sink.
type Telemetry struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// Config is the whole runtime configuration. Zero values mean "use the
// default"; Load fills them in before validating.
type Config struct {
	IdleSessionThreshold     Duration `yaml:"idle_session_threshold,omitempty"`
	RunnerIdleThreshold      Duration `yaml:"runner_idle_threshold,omitempty"`
	ApprovalDefaultTimeoutMS int64    `yaml:"approval_default_timeout_ms,omitempty"`
	ApprovalPolicy           string   `yaml:"approval_policy,omitempty"`
	TaskTimeoutMS            int64    `yaml:"task_timeout_ms,omitempty"`
	SessionQueueBound        int      `yaml:"session_queue_bound,omitempty"`
	MaxIterations            int      `yaml:"max_iterations,omitempty"`

	RecoveryStore RecoveryStore `yaml:"recovery_store,omitempty"`

	EnableToolService  bool                 `yaml:"enable_tool_service,omitempty"`
	EnabledToolSources []string             `yaml:"enabled_tool_sources,omitempty"`
	MCPServers         map[string]MCPServer `yaml:"mcp_servers,omitempty"`

	// Agents are named presets the serve command provisions at boot.
	Agents map[string]api.AgentConfig `yaml:"agents,omitempty"`

	Telemetry Telemetry `yaml:"telemetry,omitempty"`
}

var approvalPolicies = []string{"auto_cancel", "auto_approve", "safe_default"}

var recoveryStoreKinds = []string{"", "memory", "sqlite", "redis"}

var toolSources = []string{"builtin", "mcp"}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads, defaults, and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s:\n%s", path, yaml.FormatError(err, false, true))
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	c.IdleSessionThreshold = cmp.Or(c.IdleSessionThreshold, Duration(30*time.Minute))
	c.RunnerIdleThreshold = cmp.Or(c.RunnerIdleThreshold, Duration(15*time.Minute))
	c.ApprovalDefaultTimeoutMS = cmp.Or(c.ApprovalDefaultTimeoutMS, int64(90_000))
	c.ApprovalPolicy = cmp.Or(c.ApprovalPolicy, "auto_cancel")
	c.SessionQueueBound = cmp.Or(c.SessionQueueBound, 8)
	c.MaxIterations = cmp.Or(c.MaxIterations, 20)
	c.RecoveryStore.Kind = cmp.Or(c.RecoveryStore.Kind, "memory")
	if len(c.EnabledToolSources) == 0 {
		c.EnabledToolSources = []string{"builtin"}
	}
}

func (c *Config) validate() error {
	if !slices.Contains(approvalPolicies, c.ApprovalPolicy) {
		return fmt.Errorf("unknown approval_policy %q (want one of %v)", c.ApprovalPolicy, approvalPolicies)
	}
	if !slices.Contains(recoveryStoreKinds, c.RecoveryStore.Kind) {
		return fmt.Errorf("unknown recovery_store.kind %q", c.RecoveryStore.Kind)
	}
	if c.RecoveryStore.Kind == "sqlite" && c.RecoveryStore.Path == "" {
		return fmt.Errorf("recovery_store.path is required for the sqlite store")
	}
	if c.RecoveryStore.Kind == "redis" && c.RecoveryStore.Addr == "" {
		return fmt.Errorf("recovery_store.addr is required for the redis store")
	}
	for _, source := range c.EnabledToolSources {
		if !slices.Contains(toolSources, source) {
			return fmt.Errorf("unknown tool source %q (want one of %v)", source, toolSources)
		}
	}
	if c.SessionQueueBound < 1 {
		return fmt.Errorf("session_queue_bound must be at least 1")
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1")
	}
	if c.ApprovalDefaultTimeoutMS < 0 || c.TaskTimeoutMS < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	for name, server := range c.MCPServers {
		if server.Command == "" && server.URL == "" {
			return fmt.Errorf("mcp server %q: either command or url is required", name)
		}
	}
	for name, agentCfg := range c.Agents {
		if agentCfg.AgentType == "" {
			return fmt.Errorf("agent %q: agent_type is required", name)
		}
		if agentCfg.Model.Name == "" {
			return fmt.Errorf("agent %q: model name is required", name)
		}
	}
	return nil
}

// ApprovalTimeout returns the interaction deadline as a duration.
func (c *Config) ApprovalTimeout() time.Duration {
	return time.Duration(c.ApprovalDefaultTimeoutMS) * time.Millisecond
}

// TaskTimeout returns the sync task deadline, zero when unbounded.
func (c *Config) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutMS) * time.Millisecond
}

// ToolSourceEnabled reports whether a tool namespace should be registered.
func (c *Config) ToolSourceEnabled(source string) bool {
	return slices.Contains(c.EnabledToolSources, source)
}
