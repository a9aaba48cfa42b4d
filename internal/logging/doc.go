// Package logging wires slog handlers for the CLI.
//
// New builds a logger from config-driven options (console or JSON format,
// level, optional file outputs). The attrs helpers and field-name constants
// keep runner log records consistent so a run's per-item events can be
// correlated after the fact.
package logging
