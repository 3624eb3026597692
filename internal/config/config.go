package config

import (
	"time"
)

// DefaultPath is the configuration file looked up when --config is not given.
const DefaultPath = "bbreport.yaml"

// Config is the complete bbreport configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Cache   CacheConfig   `yaml:"cache"`
	Report  ReportConfig  `yaml:"report"`
	Logging LoggingConfig `yaml:"logging"`
	Issues  []IssueRule   `yaml:"issues,omitempty"`
	Watch   WatchConfig   `yaml:"watch"`

	// Warnings collects coercions made by the normalization pass.
	Warnings []string `yaml:"-"`
}

// ServerConfig describes the remote buildbot status service.
type ServerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig holds the raw backoff settings for transient fetch failures.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// CacheConfig locates the reconciliation cache snapshot.
type CacheConfig struct {
	Path     string `yaml:"path"`
	Window   int    `yaml:"window"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// ReportConfig holds presentation and collection defaults.
type ReportConfig struct {
	Builds  int          `yaml:"builds"`
	Workers int          `yaml:"workers"`
	Format  OutputFormat `yaml:"format"`
	Color   ColorMode    `yaml:"color"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// IssueRule seeds the known-issue table. Empty patterns match anything.
type IssueRule struct {
	ID      string `yaml:"id"`
	Test    string `yaml:"test,omitempty"`
	Message string `yaml:"message,omitempty"`
	Builder string `yaml:"builder,omitempty"`
}

// WatchConfig drives the long-running watch command.
type WatchConfig struct {
	Interval    time.Duration `yaml:"interval"`
	MetricsAddr string        `yaml:"metrics_addr,omitempty"`
	NATSURL     string        `yaml:"nats_url,omitempty"`
	Subject     string        `yaml:"subject"`
}
