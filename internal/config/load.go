package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

// Load reads the configuration at path. A missing file yields the defaults.
// Variables from .env files are loaded before parsing.
func Load(path string) (*Config, error) {
	var warnings []string
	if name, err := loadEnvFiles(); err != nil {
		warnings = append(warnings, fmt.Sprintf("could not load %s: %v", name, err))
	}

	data, err := os.ReadFile(path)
	switch {
	case stderrors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			UserAction().WithContext("path", path).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "invalid configuration").
			Fatal().UserAction().WithContext("path", path).Build()
	}
	cfg.Warnings = append(warnings, cfg.Warnings...)
	return cfg, nil
}

// Parse decodes YAML configuration bytes, expands environment variables,
// normalizes, applies defaults and validates. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	expandEnv(&cfg)
	cfg.Warnings = NormalizeConfig(&cfg)
	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	example := Config{
		Server: ServerConfig{
			BaseURL: DefaultBaseURL,
			Timeout: DefaultTimeout,
			Retry:   RetryConfig{Mode: RetryBackoffLinear, Initial: 250 * time.Millisecond, Max: 2 * time.Second, MaxRetries: 1},
		},
		Cache:   CacheConfig{Path: DefaultCachePath, Window: DefaultWindow},
		Report:  ReportConfig{Builds: DefaultBuilds, Workers: DefaultWorkers, Format: OutputTable, Color: ColorAuto},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		Issues: []IssueRule{
			{ID: "issue1234", Test: "^test_ssl$", Message: "timed out", Builder: "(?i)windows"},
		},
		Watch: WatchConfig{
			Interval:    DefaultWatchInterval,
			MetricsAddr: ":9464",
			NATSURL:     "${NATS_URL}",
			Subject:     DefaultSubject,
		},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
