// Package config loads ClientConfig with precedence: defaults → YAML file
// (optional) → environment overrides → validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cbre360/js-sdk/internal/syncmanager"
)

// ClientConfig is the root configuration for a kinvey client. It is
// read-only after Load returns and safe for concurrent reads.
type ClientConfig struct {
	AppKey       string `yaml:"app_key"`
	AppSecret    string `yaml:"-"` // env-only, never in YAML
	MasterSecret string `yaml:"-"` // env-only, never in YAML

	APIHostname string `yaml:"api_hostname"`
	MICHostname string `yaml:"mic_hostname"`
	APIVersion  string `yaml:"api_version"`

	DefaultTimeout Duration `yaml:"default_timeout"`

	MaxConcurrentPullRequests int    `yaml:"max_concurrent_pull_requests"`
	MaxConcurrentPushRequests int    `yaml:"max_concurrent_push_requests"`
	DefaultPageSize           int    `yaml:"default_page_size"`
	UseDeltaSet               bool   `yaml:"use_delta_set"`
	PendingSyncPullPolicy     string `yaml:"pending_sync_pull_policy"`

	Log LogConfig `yaml:"log"`
}

// LogConfig contains structured logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration with YAML string parsing ("30s", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// SyncManagerConfig translates the loaded configuration into the push/pull
// tuning knobs internal/syncmanager expects.
func (c *ClientConfig) SyncManagerConfig() syncmanager.Config {
	policy := syncmanager.PushFirst
	if c.PendingSyncPullPolicy == "fail" {
		policy = syncmanager.FailOnPending
	}
	return syncmanager.Config{
		MaxConcurrentPushRequests: c.MaxConcurrentPushRequests,
		MaxConcurrentPullRequests: c.MaxConcurrentPullRequests,
		DefaultPageSize:           c.DefaultPageSize,
		PendingSyncPullPolicy:     policy,
	}
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
func Load() (*ClientConfig, error) {
	cfg := newDefaults()

	configPath := getEnv("KINVEY_CONFIG_PATH", "config/kinvey.yaml")
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific path, which must exist.
func LoadFromFile(path string) (*ClientConfig, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newDefaults() *ClientConfig {
	return &ClientConfig{
		APIHostname:               "https://baas.kinvey.com",
		MICHostname:               "https://auth.kinvey.com",
		APIVersion:                "4",
		DefaultTimeout:            Duration(30 * time.Second),
		MaxConcurrentPullRequests: 5,
		MaxConcurrentPushRequests: 5,
		DefaultPageSize:           100,
		UseDeltaSet:               false,
		PendingSyncPullPolicy:     "push-first",
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func loadYAMLFile(cfg *ClientConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *ClientConfig) {
	if v := os.Getenv("KINVEY_APP_KEY"); v != "" {
		cfg.AppKey = v
	}
	if v := os.Getenv("KINVEY_APP_SECRET"); v != "" {
		cfg.AppSecret = v
	}
	if v := os.Getenv("KINVEY_MASTER_SECRET"); v != "" {
		cfg.MasterSecret = v
	}
	if v := os.Getenv("KINVEY_API_HOSTNAME"); v != "" {
		cfg.APIHostname = v
	}
	if v := os.Getenv("KINVEY_MIC_HOSTNAME"); v != "" {
		cfg.MICHostname = v
	}
	if v := os.Getenv("KINVEY_API_VERSION"); v != "" {
		cfg.APIVersion = v
	}
	if v := os.Getenv("KINVEY_DEFAULT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.DefaultTimeout = Duration(d)
		}
	}
	if v := os.Getenv("KINVEY_MAX_CONCURRENT_PULL_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentPullRequests = n
		}
	}
	if v := os.Getenv("KINVEY_MAX_CONCURRENT_PUSH_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxConcurrentPushRequests = n
		}
	}
	if v := os.Getenv("KINVEY_DEFAULT_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultPageSize = n
		}
	}
	if v := os.Getenv("KINVEY_USE_DELTA_SET"); v != "" {
		cfg.UseDeltaSet = v == "true" || v == "1"
	}
	if v := os.Getenv("KINVEY_PENDING_SYNC_PULL_POLICY"); v != "" {
		cfg.PendingSyncPullPolicy = v
	}
	if v := os.Getenv("KINVEY_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KINVEY_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set. Dev mode
// (KINVEY_DEV_MODE=true) skips every check below, the credential checks and
// the pending_sync_pull_policy check alike, for local testing against
// internal/testbackend.
func (c *ClientConfig) validate() error {
	if os.Getenv("KINVEY_DEV_MODE") == "true" {
		return nil
	}
	if c.AppKey == "" {
		return errors.New("KINVEY_APP_KEY is required")
	}
	if c.AppSecret == "" && c.MasterSecret == "" {
		return errors.New("KINVEY_APP_SECRET or KINVEY_MASTER_SECRET is required")
	}
	if c.PendingSyncPullPolicy != "push-first" && c.PendingSyncPullPolicy != "fail" {
		return fmt.Errorf("pending_sync_pull_policy must be %q or %q, got %q", "push-first", "fail", c.PendingSyncPullPolicy)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
