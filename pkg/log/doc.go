// Package log provides rollq's structured logging facade and utilities.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog via a custom handler that preserves the
// formatter/outputs pipeline. This allows adoption of the slog ecosystem
// while keeping consistent output and behavior across the codebase.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("server"), log.Str("backend", "file"))
//	l.Info("server started", log.Int("port", 8080))
//
// # Interop
//
// To integrate with libraries expecting *log.Logger, use RedirectStdLog.
// Construct and pass Logger instances explicitly; there is no package-global
// default.
package log
