// Package logging assembles structured slog loggers and formatting helpers used
// across LectureNote components.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so phase code can automatically
// tag log lines with task IDs, phases, and correlation IDs. The package also
// provides a no-op logger for tests and a bounded StreamHub that keeps recent
// log events for the HTTP API.
package logging
