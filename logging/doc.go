// Package logging provides a small Logger interface over log/slog so the
// engine and its providers can log without depending on a concrete logger.
// Any structured logger can be plugged in through SlogAdapter or a custom
// Logger implementation.
package logging
