package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/auto-dns/docker-image-watch/internal/app"
	"github.com/auto-dns/docker-image-watch/internal/config"
	"github.com/auto-dns/docker-image-watch/internal/logger"
)

type contextKey string

const configKey = contextKey("config")

var rootCmd = &cobra.Command{
	Use:   "docker-image-watch",
	Short: "Watch container images for updates",
	Long:  "Watches running containers for newer images locally and on remote agents, and fires triggers when updates are found.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configFile, _ := cmd.Flags().GetString("config")
		if err := config.InitConfig(configFile); err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		ctx := context.WithValue(cmd.Context(), configKey, cfg)
		cmd.SetContext(ctx)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, app.ModeController)
	},
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run as an agent serving a remote controller",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, app.ModeAgent)
	},
}

func run(cmd *cobra.Command, mode app.Mode) error {
	cfg := cmd.Context().Value(configKey).(*config.Config)

	logInstance := logger.SetupLogger(&cfg.Logging)

	application, err := newApplication(cfg, mode, version, logInstance)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logInstance.Info().Msgf("Received signal: %v", sig)
		cancel()
	}()

	// Run returns once the context is cancelled and everything is shut down.
	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "INFO", "set log level (e.g. INFO, DEBUG, WARN)")
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(agentCmd)
	rootCmd.Version = version
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Execution error: %v\n", err)
		os.Exit(1)
	}
}
