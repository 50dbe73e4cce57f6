package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/linechat-server/internal/app"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/log"
)

func main() {
	var (
		configPath string
		addr       string
		dbPath     string
		logLevel   string
	)

	rootCmd := &cobra.Command{
		Use:           "linechat-server",
		Short:         "Multi-room plain-text chat server over TCP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(logLevel)

			cfg, path, err := config.Load(logger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Explicit flags win over file and environment.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath = dbPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}

			logger = log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application := app.New(cfg, logger)

			logger.Info().Str("addr", cfg.Addr).Msg("starting linechat server")
			if err := application.Run(ctx); err != nil {
				return err
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")
	rootCmd.Flags().StringVar(&addr, "addr", "", "TCP listen address (host:port)")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the identity database")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "linechat-server: %v\n", err)
		os.Exit(1)
	}
}
