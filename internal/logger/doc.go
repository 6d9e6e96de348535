// Package logger provides a simple, thread-safe leveled logger.
//
// Each entry carries a timestamp, level, an optional source (a pool name or
// worker id such as "pool/worker-2") and the formatted message. It is the
// side channel the worker pool uses for failures of fire-and-forget jobs,
// which have no other observer.
//
// # Basic Usage
//
//	logger.Info("", "pool started")
//	logger.Error("pool/worker-1", "job %s panicked: %v", id, r)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("pool", "queue depth %d", n)
//
// # Log Levels
//
// Messages below the configured level are filtered. ParseLevel maps the
// config file strings ("debug", "info", "warn", "error") onto levels.
package logger
