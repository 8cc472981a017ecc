// Package logging assembles the structured slog loggers used by the logshard
// server and client.
//
// It owns the console and JSON handlers, level and output plumbing, and the
// attribute helpers that keep field names consistent (component,
// correlation_id, event_type, error_hint, impact). The per-request access log
// is not produced here; it has a fixed line format and lives in the
// accesslog package.
package logging
