// Package logging assembles structured slog loggers and formatting helpers used
// across deepscan.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so request handlers and the
// detection pipelines can tag log lines with request IDs and modalities. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
package logging
