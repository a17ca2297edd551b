package main

import (
	"fmt"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/audioship/pkg/log"
	"github.com/bft-labs/audioship/pkg/outbox"
	"github.com/bft-labs/audioship/pkg/upload"
)

// tally counts outcomes for the end-of-run summary.
type tally struct {
	delivered atomic.Int32
	failed    atomic.Int32
}

func (t *tally) OnDelivered(string, upload.Result) { t.delivered.Add(1) }

func (t *tally) OnFailed(_ string, _ error, willRetry bool) {
	if !willRetry {
		t.failed.Add(1)
	}
}

func newWatchCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Upload recordings as they appear in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateWatch(); err != nil {
				return err
			}
			c.log.Info().Interface("config", c.cfg.Masked()).Msg("configuration")

			logger := log.NewZerologAdapterWithLogger(c.log)
			client, err := upload.NewClient(c.cfg.UploadConfig(), upload.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			var t tally
			agent, err := outbox.New(c.cfg.OutboxConfig(), client,
				outbox.WithLogger(logger),
				outbox.WithEventHandler(&t))
			if err != nil {
				return fmt.Errorf("create outbox: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := agent.Run(ctx); err != nil {
				return err
			}
			c.log.Info().
				Int32("delivered", t.delivered.Load()).
				Int32("failed", t.failed.Load()).
				Msg("outbox stopped")
			if c.cfg.Once && t.failed.Load() > 0 {
				return fmt.Errorf("%d recordings failed", t.failed.Load())
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.WatchDir, "watch-dir", c.cfg.WatchDir, "directory where recordings are written")
	f.StringVar(&c.cfg.StateDir, "state-dir", c.cfg.StateDir, "directory for outbox.json (defaults to watch-dir)")
	f.StringVar(&c.cfg.Pattern, "pattern", c.cfg.Pattern, "glob selecting recordings")
	f.DurationVar(&c.cfg.SettleDelay, "settle-delay", c.cfg.SettleDelay, "time a file must be unmodified before upload")
	f.DurationVar(&c.cfg.RetryInitial, "retry-initial", c.cfg.RetryInitial, "first retry delay")
	f.DurationVar(&c.cfg.RetryMax, "retry-max", c.cfg.RetryMax, "maximum retry delay")
	f.IntVar(&c.cfg.MaxAttempts, "max-attempts", c.cfg.MaxAttempts, "attempts per file before giving up (0 = unlimited)")
	f.BoolVar(&c.cfg.DeleteDelivered, "delete-delivered", c.cfg.DeleteDelivered, "remove recordings after delivery")
	f.BoolVar(&c.cfg.Once, "once", c.cfg.Once, "process settled recordings and exit")
	return cmd
}
