// Package logging wraps log/slog with the handler btscanner is configured
// for: JSON or text, written to stdout, stderr or a lumberjack-rotated file.
//
// Every record carries service and version attributes:
//
//	logger := logging.New(cfg.Logging, version)
//	defer logger.Close()
//	logger.With("component", "radio").Info("adapter open", "adapter", "hci0")
//
// Default returns an info-level JSON logger on stderr for use before the
// configuration has been read.
package logging
