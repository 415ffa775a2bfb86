package root

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentcore/agentcore/pkg/adapter"
	"github.com/agentcore/agentcore/pkg/agent"
	"github.com/agentcore/agentcore/pkg/approval"
	"github.com/agentcore/agentcore/pkg/chatsession"
	"github.com/agentcore/agentcore/pkg/config"
	"github.com/agentcore/agentcore/pkg/engine"
	"github.com/agentcore/agentcore/pkg/recovery"
	"github.com/agentcore/agentcore/pkg/runner"
	"github.com/agentcore/agentcore/pkg/tools"
	"github.com/agentcore/agentcore/pkg/tools/builtin"
	"github.com/agentcore/agentcore/pkg/tools/mcp"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent execution core until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the configuration file")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("failed to start toolsets: %w", err)
	}

	store, err := recovery.New(recovery.Config{
		Kind:     cfg.RecoveryStore.Kind,
		Path:     cfg.RecoveryStore.Path,
		Addr:     cfg.RecoveryStore.Addr,
		Password: cfg.RecoveryStore.Password,
		DB:       cfg.RecoveryStore.DB,
		TTL:      cfg.RecoveryStore.TTL.Std(),
	})
	if err != nil {
		return fmt.Errorf("failed to open recovery store: %w", err)
	}

	runners := runner.NewManager(registry, tools.NewInvoker(registry),
		runner.WithIdleThreshold(cfg.RunnerIdleThreshold.Std()),
		runner.WithMaxIterations(cfg.MaxIterations),
	)
	runners.Start(ctx)
	agents := agent.NewManager(agent.WithCleanupNotifier(runners.DropAgent))
	sessions := chatsession.NewManager(agents, runners, store,
		chatsession.WithIdleThreshold(cfg.IdleSessionThreshold.Std()),
		chatsession.WithQueueBound(cfg.SessionQueueBound),
	)
	sessions.Start(ctx)

	adapterOpts := []adapter.Option{
		adapter.WithApprovalPolicy(approval.Policy(cfg.ApprovalPolicy)),
		adapter.WithApprovalTimeout(cfg.ApprovalTimeout()),
	}
	if timeout := cfg.TaskTimeout(); timeout > 0 {
		adapterOpts = append(adapterOpts, adapter.WithDefaultTaskTimeout(timeout))
	}
	eng := engine.New(adapter.New(agents, runners, sessions, registry, store, adapterOpts...), agents, sessions)

	for name := range cfg.Agents {
		preset := cfg.Agents[name]
		if _, err := agents.EnsureAgent(ctx, name, &preset); err != nil {
			return fmt.Errorf("failed to provision agent %q: %w", name, err)
		}
		slog.Info("Provisioned agent", "agent_id", name, "agent_type", preset.AgentType)
	}

	slog.Info("Agent execution core started",
		"recovery_store", cfg.RecoveryStore.Kind,
		"approval_policy", cfg.ApprovalPolicy,
		"agents", len(cfg.Agents),
	)
	fmt.Fprintln(cmd.OutOrStdout(), "agentcore is running, press Ctrl+C to stop")

	<-ctx.Done()

	slog.Info("Shutting down")
	shutdownCtx := context.WithoutCancel(ctx)
	if err := eng.Shutdown(shutdownCtx); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
		return err
	}
	return nil
}

// buildRegistry registers one toolset namespace per enabled source. MCP
// servers each get their own namespace keyed by server name.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	if cfg.ToolSourceEnabled("builtin") {
		if err := registry.Register("builtin", builtin.NewToolset()); err != nil {
			return nil, err
		}
	}

	if cfg.ToolSourceEnabled("mcp") {
		for name, server := range cfg.MCPServers {
			var ts tools.ToolSet
			if server.Command != "" {
				ts = mcp.NewToolsetCommand(name, server.Command, server.Args, server.Env, "")
			} else {
				ts = mcp.NewRemoteToolset(name, server.URL, server.Transport, server.Headers)
			}
			if err := registry.Register(name, ts, tools.WithStaticHeaders(server.Headers)); err != nil {
				return nil, err
			}
		}
	}

	return registry, nil
}
