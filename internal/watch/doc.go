// Package watch runs the reporter as a long-lived service. It refreshes the
// builder list and collects recent builds on a schedule, reloads its
// configuration when the file changes, publishes builder status transitions
// to NATS JetStream and serves Prometheus metrics.
package watch
