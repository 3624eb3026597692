package config

import (
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
)

const (
	DefaultBaseURL       = "http://www.python.org/dev/buildbot/"
	DefaultTimeout       = 4 * time.Second
	DefaultCachePath     = "~/.cache/bbreport/cache.sql.gz"
	DefaultWindow        = 50
	DefaultBuilds        = 6
	DefaultWorkers       = 4
	DefaultWatchInterval = 5 * time.Minute
	DefaultSubject       = "bbreport.status"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// applyDefaults fills zero values. It runs after normalization so canonical
// values drive defaults.
func applyDefaults(cfg *Config) error {
	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(cfg.Server.BaseURL, "/") {
		cfg.Server.BaseURL += "/"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = DefaultTimeout
	}
	if cfg.Server.Retry.Mode == "" {
		cfg.Server.Retry.Mode = RetryBackoffLinear
	}
	if cfg.Server.Retry.Initial == 0 {
		cfg.Server.Retry.Initial = 250 * time.Millisecond
	}
	if cfg.Server.Retry.Max == 0 {
		cfg.Server.Retry.Max = 2 * time.Second
	}

	if cfg.Cache.Path == "" {
		cfg.Cache.Path = DefaultCachePath
	}
	p, err := homedir.Expand(cfg.Cache.Path)
	if err != nil {
		return err
	}
	cfg.Cache.Path = p
	if cfg.Cache.Window == 0 {
		cfg.Cache.Window = DefaultWindow
	}

	if cfg.Report.Builds == 0 {
		cfg.Report.Builds = DefaultBuilds
	}
	if cfg.Report.Workers == 0 {
		cfg.Report.Workers = DefaultWorkers
	}
	if cfg.Report.Format == "" {
		cfg.Report.Format = OutputTable
	}
	if cfg.Report.Color == "" {
		cfg.Report.Color = ColorAuto
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	}

	if cfg.Watch.Interval == 0 {
		cfg.Watch.Interval = DefaultWatchInterval
	}
	if cfg.Watch.Subject == "" {
		cfg.Watch.Subject = DefaultSubject
	}
	return nil
}
