// Package logging provides the Logger interface used across Wingman and a
// slog-backed StructuredLogger.
//
// Arguments after the message are slog key/value pairs:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "text"})
//	logger.WithComponent("server").Info("listening", "port", 7891)
//
// Components take a Logger and default to NoOpLogger when none is given.
package logging
