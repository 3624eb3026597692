package config

import (
	"fmt"
	"strings"
)

// NormalizeConfig canonicalizes enumerated and list fields before defaults
// are applied. Unknown enum values are reset (so the default applies) and
// reported as warnings.
func NormalizeConfig(c *Config) []string {
	var warnings []string
	warn := func(field, raw string) {
		warnings = append(warnings, fmt.Sprintf("unknown %s %q, using default", field, raw))
	}

	c.Server.BaseURL = strings.TrimSpace(c.Server.BaseURL)
	if raw := string(c.Server.Retry.Mode); raw != "" {
		if c.Server.Retry.Mode = NormalizeRetryBackoff(raw); c.Server.Retry.Mode == "" {
			warn("server.retry.mode", raw)
		}
	}
	if raw := string(c.Report.Format); raw != "" {
		if c.Report.Format = NormalizeOutputFormat(raw); c.Report.Format == "" {
			warn("report.format", raw)
		}
	}
	if raw := string(c.Report.Color); raw != "" {
		if c.Report.Color = NormalizeColorMode(raw); c.Report.Color == "" {
			warn("report.color", raw)
		}
	}
	if raw := string(c.Logging.Level); raw != "" {
		if c.Logging.Level = NormalizeLogLevel(raw); c.Logging.Level == "" {
			warn("logging.level", raw)
		}
	}
	if raw := string(c.Logging.Format); raw != "" {
		if c.Logging.Format = NormalizeLogFormat(raw); c.Logging.Format == "" {
			warn("logging.format", raw)
		}
	}
	for i := range c.Issues {
		c.Issues[i].ID = strings.TrimSpace(c.Issues[i].ID)
	}
	return warnings
}
