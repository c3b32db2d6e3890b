package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vintoniuk/anadeabot/internal/settings"
)

var rootCmd = &cobra.Command{
	Use:           "anadeabot",
	Short:         "anadeabot helps customers design and order T-shirts",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML or JSON config file")
}

// loadSettings reads the --config file and builds the logger it describes.
func loadSettings(cmd *cobra.Command) (settings.Settings, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("ANADEABOT_CONFIG")
	}
	s, err := settings.Load(path)
	if err != nil {
		return settings.Settings{}, nil, err
	}
	logger := newLogger(s.Log)
	slog.SetDefault(logger)
	return s, logger, nil
}

// newLogger writes to stderr so stdout stays free for chat and reports.
func newLogger(cfg settings.Log) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
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
