// Package observability bundles the ambient instrumentation of the
// service: redacting structured logging on slog, Prometheus metrics,
// OpenTelemetry tracing, and a JSON stats snapshot for the admin
// surface.
package observability
