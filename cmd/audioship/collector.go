package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bft-labs/audioship/internal/collector"
	"github.com/bft-labs/audioship/pkg/log"
)

func newCollectorCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Run a minimal upload endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateCollector(); err != nil {
				return err
			}

			srv, err := collector.New(c.cfg.CollectorConfig(), log.NewZerologAdapterWithLogger(c.log))
			if err != nil {
				return fmt.Errorf("create collector: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	f := cmd.Flags()
	f.StringVar(&c.cfg.ListenAddr, "listen", c.cfg.ListenAddr, "listen address")
	f.StringVar(&c.cfg.UploadDir, "upload-dir", c.cfg.UploadDir, "directory for received files")
	f.IntVar(&c.cfg.MaxUploadBytes, "max-upload-bytes", c.cfg.MaxUploadBytes, "largest accepted request body")
	return cmd
}
