package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/terra-clan/interview-engine/internal/config"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "interview-engine",
	Short: "Spoken interview practice and candidate screening service",
	Long: `interview-engine serves the practice and company interview API.

Questions are read aloud, answers are recorded and scored in the background.
Run "serve" to start the API, "migrate" to apply the schema and "seed" to
import YAML question banks.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default ./config/config.yaml)")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the default logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(newLogger(cfg.Log))
	return cfg, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func fail(msg string, err error) error {
	slog.Error(msg, "error", err)
	return fmt.Errorf("%s: %w", msg, err)
}
