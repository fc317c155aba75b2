// Package logging provides a minimal logging interface and adapters for agentrail.
//
// The Logger interface defines the leveled, key/value logging methods the runner,
// tool dispatcher and guardrail evaluator use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NewLogger building a JSON or text slog handler from LoggerConfig
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelDebug, Format: "text"})
//	r := runner.New(func(o *runner.Options) { o.Logger = logger })
package logging
