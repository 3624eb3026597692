// Package errors provides the classified error type used across bbreport.
//
// A ClassifiedError carries a category (config, network, cache, logformat, ...),
// a severity, a retry strategy and free-form context. Errors are built with the
// fluent ErrorBuilder and presented to users through CLIErrorAdapter, which also
// maps categories to process exit codes.
//
// Example usage:
//
//	err := errors.WrapError(cause, errors.CategoryNetwork, "fetch build page").
//		Warning().
//		Retryable().
//		WithContext("url", pageURL).
//		Build()
package errors
