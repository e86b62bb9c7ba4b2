// Package logging builds the process-wide slog logger with console and JSON
// handlers, plus attribute helpers shared across components.
package logging
