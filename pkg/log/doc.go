// Package log provides the logging abstraction used across crashship.
//
// Components accept a Logger and never import a logging library directly.
// A zerolog adapter is provided for the agent binary and a no-op logger for
// tests and embedders that do not want output.
//
// # Usage
//
//	logger := log.NewZerologAdapter()
//	logger.Warn("crash dir unreadable", log.String("dir", dir), log.Err(err))
//
// Or wrap an already configured zerolog.Logger:
//
//	logger := log.NewZerologAdapterWithLogger(zl)
package log
