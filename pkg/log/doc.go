// Package log provides the structured logging facade used across datalog.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Records are routed through a slog
// handler bridge into a formatter/outputs pipeline, so the facade stays stable
// while slog does the attribute plumbing.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("datalog"), log.Str("account", "alice"))
//	l.Info("record appended", log.Int("bytes", 42))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config: level, text or JSON
// formatting, console/file/null outputs, key redaction and per-message
// sampling.
//
// # Interop
//
// Pebble and other libraries log through the standard library. Use
// RedirectStdLog to send those lines through a Logger, or ToStdLogger to hand
// a *log.Logger to code that wants one.
package log
