package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "bbreport.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "bbreport.yaml" {
			t.Errorf("expected context file=bbreport.yaml, got %v", file)
		}
	})

	t.Run("Error string", func(t *testing.T) {
		err := WrapError(errors.New("boom"), CategoryCache, "load snapshot").Warning().Build()
		if got, want := err.Error(), "[cache:warning] load snapshot: boom"; got != want {
			t.Errorf("Error() = %q, want %q", got, want)
		}
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := LogFormatError("test count mismatch").Build()
		wrapped := fmt.Errorf("builder x86 trunk build 12: %w", inner)

		if !HasCategory(wrapped, CategoryLogFormat) {
			t.Error("expected wrapped error to keep logformat category")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("expected plain errors to default to internal")
		}
		if !errors.Is(wrapped, LogFormatError("test count mismatch").Build()) {
			t.Error("expected errors.Is to match on category and message")
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := WrapError(originalErr, CategoryNetwork, "fetch builder list").
			Warning().
			Retryable().
			WithContext("url", "http://buildbot.example/all/one_box_per_builder").
			Build()

		if err.RetryStrategy() != RetryBackoff {
			t.Errorf("expected retry strategy %s, got %s", RetryBackoff, err.RetryStrategy())
		}
		if !errors.Is(err, originalErr) {
			t.Error("expected error to wrap original error")
		}
		if !IsTransient(err) {
			t.Error("expected retryable network error to be transient")
		}
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryUserAction},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryNever},
			{"NetworkError", NetworkError("test"), CategoryNetwork, SeverityWarning, RetryBackoff},
			{"CacheError", CacheError("test"), CategoryCache, SeverityWarning, RetryNever},
			{"LogFormatError", LogFormatError("test"), CategoryLogFormat, SeverityFatal, RetryNever},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				if err.Category() != tt.category {
					t.Errorf("expected category %s, got %s", tt.category, err.Category())
				}
				if err.Severity() != tt.severity {
					t.Errorf("expected severity %s, got %s", tt.severity, err.Severity())
				}
				if err.RetryStrategy() != tt.retry {
					t.Errorf("expected retry strategy %s, got %s", tt.retry, err.RetryStrategy())
				}
			})
		}
	})
}

func TestErrorContext(t *testing.T) {
	ctx1 := make(ErrorContext)
	ctx1 = ctx1.Set("builder", "x86 trunk")
	ctx1 = ctx1.Set("shared", "original")

	ctx2 := make(ErrorContext)
	ctx2 = ctx2.Set("build", 42)
	ctx2 = ctx2.Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	if v, _ := merged.GetString("builder"); v != "x86 trunk" {
		t.Errorf("expected builder=x86 trunk, got %s", v)
	}
	if v, _ := merged.Get("build"); v != 42 {
		t.Errorf("expected build=42, got %v", v)
	}
	if v, _ := merged.GetString("shared"); v != "overridden" {
		t.Errorf("expected shared=overridden, got %s", v)
	}
	if _, ok := merged.Get("missing"); ok {
		t.Error("expected missing key to not exist")
	}
}
