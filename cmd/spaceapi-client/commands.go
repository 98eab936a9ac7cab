package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	"spaceapiclient/internal/api"
	"spaceapiclient/internal/config"
	"spaceapiclient/internal/configflow"
	"spaceapiclient/internal/entity"
	"spaceapiclient/internal/integration"
	"spaceapiclient/internal/spaceapi"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// commandTimeout bounds one-shot commands
const commandTimeout = 30 * time.Second

// setup loads configuration and a logger for a command
func setup() (*config.Config, *zap.Logger, error) {
	logger, err := newLogger(logLevel)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.NewLoader(configPath, envFile, logger).Load()
	if err != nil {
		logger.Sync()
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, logger, nil
}

func newSpaceClient(cfg *config.Config, logger *zap.Logger) (*spaceapi.Client, error) {
	client, err := spaceapi.NewClient(cfg.HostURL, cfg.APIKey, &http.Client{}, logger)
	if err != nil {
		return nil, err
	}
	client.SetTimeout(cfg.RequestTimeout)
	return client, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the endpoint and serve the HTTP API",
	Long: `Poll the configured SpaceAPI endpoint and serve its state over HTTP.

The binary sensor is always available. The switch endpoints are enabled
only when an API key is configured and READ_ONLY is not set.`,
	Example: `  # Read-only monitoring
  SPACEAPI_HOST_URL=https://space.example.org spaceapi-client run

  # With write support on a custom port
  SPACEAPI_API_KEY=secret SPACEAPI_LISTEN_PORT=9000 spaceapi-client run --log-level debug`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting SpaceAPI client",
		zap.String("version", version),
		zap.String("host_url", cfg.HostURL),
		zap.Bool("read_only", cfg.ReadOnly))

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	integ, err := integration.Setup(ctx, cfg, &http.Client{}, logger)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to set up integration: %w", err)
	}
	defer integ.Unload()

	if integ.Switch() == nil {
		logger.Info("Running without switch - no API key configured or READ-ONLY mode")
	}

	port, _ := strconv.Atoi(cfg.ListenPort)
	server := api.NewServer(integ, logger, port, cfg.ReadOnly)
	if err := server.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Application running. Press Ctrl+C to exit.")
	sig := <-sigChan
	logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop HTTP API server", zap.Error(err))
	}
	return nil
}

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the space's current open state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		client, err := newSpaceClient(cfg, logger)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		snap, err := client.GetSpaceState(ctx)
		if err != nil {
			return fmt.Errorf("failed to read space state: %w", err)
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			_, err := out.Write(append(snap.Raw, '\n'))
			return err
		}

		state := "closed"
		if snap.Open() {
			state = "open"
		}
		fmt.Fprintf(out, "%s is %s\n", entity.DeviceName(client.HostURL(), snap), state)
		return nil
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the raw SpaceAPI document")
}

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Mark the space as open",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetState(cmd, true)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Mark the space as closed",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSetState(cmd, false)
	},
}

func runSetState(cmd *cobra.Command, open bool) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.ReadOnly {
		return fmt.Errorf("refusing to change state in READ-ONLY mode")
	}

	client, err := newSpaceClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
	defer cancel()

	resp, err := client.SetSpaceState(ctx, open)
	if err != nil {
		return err
	}

	state := "closed"
	if open {
		state = "open"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Space marked %s (HTTP %d)\n", state, resp.StatusCode)
	return nil
}

var (
	validateHost   string
	validateAPIKey string
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check an endpoint's URL and API key and test the connection",
	Long: `Validate a host URL and optional API key, then read the endpoint once.

Flags default to SPACEAPI_HOST_URL and SPACEAPI_API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(logLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := godotenv.Load(envFile); err != nil {
			logger.Debug("No env file loaded", zap.Error(err))
		}
		input := configflow.Input{Host: validateHost, APIKey: validateAPIKey}
		if input.Host == "" {
			input.Host = os.Getenv(config.EnvHostURL)
		}
		if input.APIKey == "" {
			input.APIKey = os.Getenv(config.EnvAPIKey)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
		defer cancel()

		result := configflow.New(&http.Client{}, logger).Submit(ctx, input)
		out := cmd.OutOrStdout()
		if !result.OK() {
			keys := make([]string, 0, len(result.Errors))
			for k := range result.Errors {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, result.Errors[k])
			}
			return fmt.Errorf("validation failed")
		}

		key, err := spaceapi.SanitizeAPIKey(input.APIKey, nil)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Title    string `json:"title"`
			UniqueID string `json:"unique_id"`
			ReadOnly bool   `json:"read_only"`
		}{result.Entry.Title, result.Entry.UniqueID, key == ""})
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateHost, "host", "", "SpaceAPI host URL")
	validateCmd.Flags().StringVar(&validateAPIKey, "api-key", "", "API key for write access")
}
