// Spaceapi-client reads and controls a SpaceAPI endpoint.
//
// It polls the endpoint's open state, exposes it over a small HTTP API with
// live websocket updates, and, when an API key is configured, opens and
// closes the space.
//
// Usage:
//
//	spaceapi-client [command] [flags]
//
// Configuration is read from .env, an optional YAML file (--config) and the
// SPACEAPI_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Set at build time via -ldflags "-X main.version=v1.2.3 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "none"
)

var (
	configPath string
	envFile    string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spaceapi-client",
	Short: "SpaceAPI endpoint client",
	Long: `A client for SpaceAPI endpoints with write support.

Polls the space's open state, serves it over HTTP and a websocket stream,
and opens or closes the space when an API key is configured.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, statusCmd, openCmd, closeCmd, validateCmd, versionCmd)
}

// newLogger builds a production logger at the given level, or a development
// logger for debug
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "spaceapi-client %s (commit: %s)\n", version, commit)
	},
}
