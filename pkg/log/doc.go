// Package log provides the logging abstraction used by audioship components.
//
// The upload client and the outbox agent log through the Logger interface so
// that embedding applications can route messages into their own logging
// stack. A zerolog adapter is provided for the CLI and a no-op logger is the
// default for library users.
//
// # Usage
//
//	logger := log.NewZerologAdapter()
//	client, err := upload.NewClient(cfg, upload.WithLogger(logger))
//
// Tests and quiet embeddings can pass log.NewNoopLogger().
package log
