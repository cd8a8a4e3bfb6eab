// Package log provides the logging abstraction used by tagship components.
//
// Jobs, adapters and the pipeline executor log through the Logger interface
// so they can be embedded in hosts that use a different logging library.
// A zerolog adapter and a no-op logger are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapter(log.Options{Level: "debug"})
//	logger.Info("job started", log.Job("push_to_pypi"))
//
// Tests usually pass log.NewNoopLogger().
package log
