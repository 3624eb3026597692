package config

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"git.home.luguber.info/inful/bbreport/internal/foundation/errors"
)

// ValidateConfig checks a normalized, defaulted configuration.
func ValidateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.ConfigError("server.base_url must be an absolute http(s) URL").
			WithContext("base_url", cfg.Server.BaseURL).Build()
	}
	if cfg.Server.Timeout < 0 {
		return errors.ConfigError("server.timeout cannot be negative").Build()
	}
	if cfg.Server.Retry.MaxRetries < 0 {
		return errors.ConfigError("server.retry.max_retries cannot be negative").Build()
	}
	if cfg.Cache.Window < 1 {
		return errors.ConfigError(fmt.Sprintf("cache.window must be at least 1, got %d", cfg.Cache.Window)).Build()
	}
	if cfg.Report.Builds < 1 {
		return errors.ConfigError(fmt.Sprintf("report.builds must be at least 1, got %d", cfg.Report.Builds)).Build()
	}
	if cfg.Report.Workers < 1 {
		return errors.ConfigError(fmt.Sprintf("report.workers must be at least 1, got %d", cfg.Report.Workers)).Build()
	}
	if cfg.Watch.Interval < time.Second {
		return errors.ConfigError("watch.interval must be at least 1s").
			WithContext("interval", cfg.Watch.Interval.String()).Build()
	}
	seen := make(map[string]struct{}, len(cfg.Issues))
	for _, r := range cfg.Issues {
		if err := ValidateIssueRule(r); err != nil {
			return err
		}
		key := r.ID + "\x00" + r.Test + "\x00" + r.Message + "\x00" + r.Builder
		if _, dup := seen[key]; dup {
			return errors.ConfigError("duplicate issue rule").WithContext("issue", r.ID).Build()
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ValidateIssueRule requires an id and compilable patterns.
func ValidateIssueRule(r IssueRule) error {
	if r.ID == "" {
		return errors.ValidationError("issue rule requires an id").Build()
	}
	for field, pattern := range map[string]string{"test": r.Test, "message": r.Message, "builder": r.Builder} {
		if pattern == "" {
			continue
		}
		if _, err := regexp.Compile(pattern); err != nil {
			return errors.WrapError(err, errors.CategoryValidation, "invalid issue rule pattern").
				Fatal().
				WithContext("issue", r.ID).
				WithContext("field", field).
				Build()
		}
	}
	return nil
}
