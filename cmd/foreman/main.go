package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"

	"github.com/foreman-dev/foreman/internal/config"
	"github.com/foreman-dev/foreman/internal/httpapi"
	"github.com/foreman-dev/foreman/pkg/llm"
	"github.com/foreman-dev/foreman/pkg/orchestrator"
	"github.com/foreman-dev/foreman/pkg/session"
	"github.com/foreman-dev/foreman/pkg/store"
)

const defaultConfigPath = "config/foreman.yaml"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd creates the root foreman command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "foreman",
		Short: "Conversational project management service",
		Long: `Foreman turns chat messages into project management operations:
creating projects, requirements, tasks, dependencies, and resources,
assigning resources, and answering questions about a project.

Available subcommands:
  serve       Run the chat HTTP server

Examples:
  foreman serve
  foreman serve --config /etc/foreman/foreman.yaml`,
		SilenceUsage: true,
	}

	cmd.AddCommand(newServeCmd())

	return cmd
}

// ServeConfig holds flags for the serve command
type ServeConfig struct {
	ConfigPath string
	Verbosity  int
}

// newServeCmd creates the serve command
func newServeCmd() *cobra.Command {
	cfg := &ServeConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.ConfigPath, "config", defaultConfigPath, "Path to configuration file")
	cmd.Flags().IntVarP(&cfg.Verbosity, "verbosity", "v", 0, "Log verbosity level")

	return cmd
}

func runServe(ctx context.Context, serveCfg *ServeConfig) error {
	stdr.SetVerbosity(serveCfg.Verbosity)
	logger := stdr.New(log.New(os.Stderr, "", log.LstdFlags)).WithName("foreman")

	cfg, err := loadConfiguration(serveCfg.ConfigPath, logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting foreman",
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Model,
		"database", cfg.Database.Path,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open project store: %w", err)
	}

	sessionDB := db
	if cfg.Database.SessionPath != cfg.Database.Path {
		sessionDB, err = store.Open(cfg.Database.SessionPath)
		if err != nil {
			return fmt.Errorf("failed to open session store: %w", err)
		}
	}
	sessions, err := session.NewGormStore(sessionDB.Gorm())
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	model, err := llm.NewClientFromConfig(cfg.ModelClientConfig())
	if err != nil {
		return fmt.Errorf("failed to create model client: %w", err)
	}

	orch := orchestrator.New(model, db, logger)
	server := httpapi.NewServer(orch, sessions, db, cfg.Server, logger)
	httpServer := server.HTTPServer()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("http server failed: %w", err)
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "http server shutdown failed")
	}

	logger.Info("shutdown complete")
	return nil
}

func loadConfiguration(configPath string, logger logr.Logger) (*config.Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		logger.Info("config file not found, using defaults", "path", configPath)
		cfg := config.DefaultConfig()

		if err := config.SaveConfig(cfg, configPath); err == nil {
			logger.Info("default configuration saved", "path", configPath)
		}

		return cfg, nil
	}

	return config.LoadConfig(configPath)
}
