// Package cache implements the reconciliation store that lets bbreport skip
// remote fetches for builds it has already classified.
//
// The working store is an in-memory SQLite database. It is filled wholesale
// from a gzip-compressed SQL snapshot when the process starts and written back
// wholesale when it exits; nothing touches disk in between. Only builds with a
// non-negative number are stored, and build rows are insert-only because a
// finished build never changes.
//
// Disabled is a Store that remembers nothing. It is used when caching is
// turned off or the snapshot cannot be read.
package cache
