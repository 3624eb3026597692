package config

import (
	"log/slog"

	"git.home.luguber.info/inful/bbreport/internal/foundation/normalization"
)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, "")

// NormalizeLogLevel returns the canonical level or "" when raw is unknown.
func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// SlogLevel maps the level onto log/slog.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, "")

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, "")

func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// OutputFormat selects the report renderer.
type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

var outputFormatNormalizer = normalization.NewEnumNormalizer("output format", map[string]OutputFormat{
	"table": OutputTable,
	"json":  OutputJSON,
	"yaml":  OutputYAML,
	"yml":   OutputYAML,
}, "")

func NormalizeOutputFormat(raw string) OutputFormat {
	return outputFormatNormalizer.Normalize(raw)
}

// ParseOutputFormat is the strict variant used for command-line flags.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	return outputFormatNormalizer.NormalizeWithValidation(raw)
}

// ColorMode controls ANSI styling of the report table.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

var colorModeNormalizer = normalization.NewEnumNormalizer("color mode", map[string]ColorMode{
	"auto":   ColorAuto,
	"always": ColorAlways,
	"never":  ColorNever,
	"on":     ColorAlways,
	"off":    ColorNever,
}, "")

func NormalizeColorMode(raw string) ColorMode {
	return colorModeNormalizer.Normalize(raw)
}

func ParseColorMode(raw string) (ColorMode, error) {
	return colorModeNormalizer.NormalizeWithValidation(raw)
}
