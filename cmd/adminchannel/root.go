package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fernandofuc/tistis-platform-sub010/common/environment"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/config"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "adminchannel",
	Short: "Conversational admin channel for business operators",
	Long: `adminchannel receives operator messages from Telegram or WhatsApp
bridges, resolves what the operator wants, checks their permissions and runs
the matching handler. Changes to business data are proposed first and applied
only after an explicit confirmation.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config",
		environment.StringOr(config.EnvPrefix+"CONFIG", "adminchannel.yaml"), "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
}

// loadConfig reads the config file and applies the --log-level override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// setupLogger installs the default slog logger.
func setupLogger(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
