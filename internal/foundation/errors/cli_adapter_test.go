package errors

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation", ValidationError("bad flag").Build(), 2},
		{"config", ConfigError("bad config").Build(), 7},
		{"network", NetworkError("unreachable").Build(), 8},
		{"cache", CacheError("corrupt snapshot").Build(), 9},
		{"internal", InternalError("bug").Build(), 10},
		{"log format", LogFormatError("count mismatch").Build(), 11},
		{"unclassified", &customError{msg: "unknown error"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil error", nil, ""},
		{"config shows bare message", ConfigError("cache.window must be positive").Build(), "cache.window must be positive"},
		{"other categories are prefixed", NetworkError("timeout").Build(), "network: timeout"},
		{"unclassified", &customError{msg: "unknown error"}, "Error: unknown error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.FormatError(tt.err); got != tt.want {
				t.Errorf("FormatError() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(LogFormatError("3 tests announced, 2 listed").WithContext("builder", "x86 trunk").Build())

	if code != 11 {
		t.Errorf("exit code = %d, want 11", code)
	}
	if !strings.Contains(out.String(), "logformat: 3 tests announced, 2 listed") {
		t.Errorf("unexpected user output %q", out.String())
	}
	if !strings.Contains(logs.String(), "builder=\"x86 trunk\"") {
		t.Errorf("expected context in log output, got %q", logs.String())
	}
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
