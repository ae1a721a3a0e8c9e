package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvoronov/chanrelay/internal/config"
	"github.com/nvoronov/chanrelay/internal/relay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile, logLevel string

	cmd := &cobra.Command{
		Use:           "chanrelay",
		Short:         "Relays new posts from watched Telegram channels to subscribers",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: cfg.SlogLevel(),
			})))

			app, err := relay.New(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return app.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&cfgFile, "config", "", `config file (default "chanrelay.yml")`)
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	return cmd
}
