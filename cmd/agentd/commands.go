package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentrt/agentrt/internal/compactor"
	"github.com/agentrt/agentrt/internal/config"
	"github.com/agentrt/agentrt/internal/contextstore"
	"github.com/agentrt/agentrt/internal/gateway"
	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/orchestrator"
	"github.com/agentrt/agentrt/internal/provider"
	"github.com/agentrt/agentrt/internal/sessions"
	"github.com/agentrt/agentrt/internal/tools"
)

// buildServeCmd creates the "serve" command that starts the gateway and
// metrics servers. Graceful shutdown on SIGINT/SIGTERM.
func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the agent gateway server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:     cfg.Observability.LogLevel,
		Format:    cfg.Observability.LogFormat,
		AddSource: cfg.Observability.LogAddSource,
	})
	metrics := observability.NewMetrics()

	var store sessions.Store
	if cfg.Session.SQLiteDSN != "" {
		sqlStore, err := sessions.NewSQLiteStore(cfg.Session.SQLiteDSN)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		if err := sessions.Migrate(ctx, sqlStore.DB()); err != nil {
			return err
		}
		store = sqlStore

		sweeper, err := sessions.NewSweeper(store, cfg.Session.TTL(), cfg.Session.SweepSchedule, logger)
		if err != nil {
			return err
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	manager := sessions.NewManager(store, cfg.Session.TTL(), logger)

	client := provider.NewClient(provider.Options{
		BaseURL: cfg.LLM.BaseURL,
		Timeout: time.Duration(cfg.LLM.RequestTimeoutSeconds) * time.Second,
		Logger:  logger,
		Metrics: metrics,
	})

	loader := contextstore.NewMemoryLoader()

	registry := tools.NewRegistry(logger)
	if err := registry.Register(tools.EchoTool()); err != nil {
		return err
	}

	executor := tools.NewExecutor(registry, tools.ExecConfig{
		Concurrency:    cfg.Session.ToolConcurrency,
		PerToolTimeout: cfg.Session.ToolTimeout(),
	}, metrics)

	orch := orchestrator.New(
		client,
		registry,
		executor,
		tools.NewResultCompactor(loader),
		orchestrator.Config{
			MaxIterations: cfg.Session.MaxIterations,
			SoftLimit:     cfg.Session.SoftLimitIterations,
			MaxAttempts:   cfg.LLM.MaxAttempts,
		},
		logger,
		metrics,
	)

	comp := compactor.New(client, cfg.LLM.ContextLimit, logger, metrics)

	server := gateway.NewServer(gateway.Deps{
		Config:       cfg,
		Logger:       logger,
		Metrics:      metrics,
		Sessions:     manager,
		Registry:     registry,
		Orchestrator: orch,
		Compactor:    comp,
		Loader:       loader,
	})

	return server.Start(ctx)
}

// buildMigrateCmd creates the "migrate" command that applies the SQLite
// schema and exits.
func buildMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the session database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Session.SQLiteDSN == "" {
				return cmd.Help()
			}

			store, err := sessions.NewSQLiteStore(cfg.Session.SQLiteDSN)
			if err != nil {
				return err
			}
			defer store.Close()

			return sessions.Migrate(cmd.Context(), store.DB())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	return cmd
}
