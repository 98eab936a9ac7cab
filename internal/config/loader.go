package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"spaceapiclient/internal/spaceapi"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load. They override the YAML file.
const (
	EnvHostURL      = "SPACEAPI_HOST_URL"
	EnvAPIKey       = "SPACEAPI_API_KEY"
	EnvPollInterval = "SPACEAPI_POLL_INTERVAL"
	EnvListenPort   = "SPACEAPI_LISTEN_PORT"
	EnvReadOnly     = "READ_ONLY"
)

// Defaults applied before the file and environment are read
const (
	DefaultPollInterval   = 60 * time.Second
	DefaultRequestTimeout = spaceapi.DefaultTimeout
	DefaultSettleDelay    = 500 * time.Millisecond
	DefaultListenPort     = "8081"
)

// Config is the runtime configuration for one SpaceAPI endpoint
type Config struct {
	HostURL        string        `yaml:"host_url"`
	APIKey         string        `yaml:"api_key"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ListenPort     string        `yaml:"listen_port"`
	ReadOnly       bool          `yaml:"read_only"`
}

// Default returns a Config with every default applied and no endpoint
func Default() *Config {
	return &Config{
		PollInterval:   DefaultPollInterval,
		RequestTimeout: DefaultRequestTimeout,
		SettleDelay:    DefaultSettleDelay,
		ListenPort:     DefaultListenPort,
	}
}

// CanWrite reports whether the switch should be created
func (c *Config) CanWrite() bool {
	return c.APIKey != "" && !c.ReadOnly
}

// Loader reads configuration from a .env file, an optional YAML file and
// the process environment
type Loader struct {
	configPath string
	envFile    string
	logger     *zap.Logger
}

// NewLoader creates a new configuration loader. An empty configPath skips
// the YAML file; an empty envFile reads ".env".
func NewLoader(configPath, envFile string, logger *zap.Logger) *Loader {
	if envFile == "" {
		envFile = ".env"
	}
	return &Loader{
		configPath: configPath,
		envFile:    envFile,
		logger:     logger.Named("config"),
	}
}

// Load builds and validates the configuration
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(l.envFile); err != nil {
		l.logger.Debug("No env file loaded", zap.String("path", l.envFile), zap.Error(err))
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.normalize(l.logger); err != nil {
		return nil, err
	}

	l.logger.Info("Configuration loaded",
		zap.String("host_url", cfg.HostURL),
		zap.Bool("api_key_set", cfg.APIKey != ""),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("listen_port", cfg.ListenPort),
		zap.Bool("read_only", cfg.ReadOnly))
	return cfg, nil
}

func (l *Loader) loadFile(cfg *Config) error {
	l.logger.Debug("Loading config file", zap.String("path", l.configPath))

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvHostURL); ok {
		cfg.HostURL = v
	}
	if v, ok := os.LookupEnv(EnvAPIKey); ok {
		cfg.APIKey = v
	}
	if v, ok := os.LookupEnv(EnvListenPort); ok && v != "" {
		cfg.ListenPort = v
	}
	if v, ok := os.LookupEnv(EnvPollInterval); ok && v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return &spaceapi.ConfigError{Field: "poll_interval", Msg: err.Error()}
		}
		cfg.PollInterval = d
	}
	if v, ok := os.LookupEnv(EnvReadOnly); ok && v != "" {
		readOnly, err := strconv.ParseBool(v)
		if err != nil {
			return &spaceapi.ConfigError{Field: "read_only", Msg: fmt.Sprintf("invalid boolean %q", v)}
		}
		cfg.ReadOnly = readOnly
	}
	return nil
}

// parseInterval accepts a Go duration ("30s") or a number of seconds
func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

func (c *Config) normalize(logger *zap.Logger) error {
	if strings.TrimSpace(c.HostURL) == "" {
		return &spaceapi.ConfigError{Field: "host", Msg: "host URL is required (set " + EnvHostURL + ")"}
	}

	host, err := spaceapi.SanitizeHostURL(c.HostURL)
	if err != nil {
		return err
	}
	c.HostURL = host

	key, err := spaceapi.SanitizeAPIKey(c.APIKey, logger)
	if err != nil {
		return err
	}
	c.APIKey = key

	if c.PollInterval <= 0 {
		return &spaceapi.ConfigError{Field: "poll_interval", Msg: "must be positive"}
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.SettleDelay < 0 {
		return &spaceapi.ConfigError{Field: "settle_delay", Msg: "must not be negative"}
	}
	if _, err := strconv.Atoi(c.ListenPort); err != nil {
		return &spaceapi.ConfigError{Field: "listen_port", Msg: fmt.Sprintf("invalid port %q", c.ListenPort)}
	}
	return nil
}

// IsConfigError reports whether err is a configuration problem
func IsConfigError(err error) bool {
	return errors.Is(err, spaceapi.ErrConfig)
}
