package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fernandofuc/tistis-platform-sub010/common/version"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the turn API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		setupLogger(cfg.Log.Level, cfg.Log.Format)
		slog.Info("admin channel starting", "version", version.Version, "commit", version.GitCommit)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize: %w", err)
		}
		defer a.Close()

		return a.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
