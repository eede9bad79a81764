// Package logging provides a minimal logging interface and adapters for vexora.
//
// The Logger interface defines the standard logging methods (Debug, Info, Warn, Error)
// that the engine, actors and stores use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - VexoraLogger with component / thread / run context and domain helpers
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - GetLogger / Setup for named loggers below the "vexora" root
//
// Usage:
//
//	logging.Setup(logging.LogLevelInfo, logging.FormatAuto, os.Stderr)
//	eng := engine.New(func(o *engine.Options) { o.Logger = logging.Named("engine") })
//
// The interface is kept minimal to avoid vendor lock-in while supporting
// structured logging where available.
package logging
