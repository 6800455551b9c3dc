// Package logging sets up structured slog logging for snipsearch.
// Logs are JSON lines written to a size-rotated file under ~/.snipsearch/logs,
// optionally mirrored to stderr. The serve command never mirrors to stderr
// because stdio carries the MCP stream.
package logging
