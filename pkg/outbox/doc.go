// Package outbox ships finished recordings from a directory to a collector.
//
// The agent watches a directory for audio files, waits until a file has
// stopped changing, and hands it to an upload client. Retryable failures are
// retried with exponential backoff; every outcome is recorded in a JSON
// ledger so delivered files are not sent twice across restarts.
//
// # Usage
//
//	agent, err := outbox.New(outbox.Config{
//	    WatchDir: "/var/recordings",
//	}, client, outbox.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	return agent.Run(ctx)
//
// At most one upload per file is in flight at any time.
package outbox
