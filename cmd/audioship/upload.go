package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/audioship/pkg/log"
	"github.com/bft-labs/audioship/pkg/outbox"
	"github.com/bft-labs/audioship/pkg/upload"
)

func newUploadCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload recordings and print the collector's response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.ValidateClient(); err != nil {
				return err
			}
			c.log.Debug().Interface("config", c.cfg.Masked()).Msg("configuration")

			client, err := upload.NewClient(c.cfg.UploadConfig(),
				upload.WithLogger(log.NewZerologAdapterWithLogger(c.log)))
			if err != nil {
				return fmt.Errorf("create client: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			failed := uploadFiles(ctx, client, args, c.cfg.MIMEType, c.cfg.Concurrency, cmd.OutOrStdout())
			if failed > 0 {
				return fmt.Errorf("%d of %d uploads failed", failed, len(args))
			}
			return nil
		},
	}
}

// uploadFiles sends each path independently; one failure never stops the
// others. It returns the number of failed uploads.
func uploadFiles(ctx context.Context, u outbox.Uploader, paths []string, mimeType string, limit int, out io.Writer) int {
	var (
		g      errgroup.Group
		failed atomic.Int32
		outMu  sync.Mutex
	)
	g.SetLimit(limit)

	report := func(format string, args ...interface{}) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	for _, path := range paths {
		g.Go(func() error {
			p, err := upload.OpenPayload(path, mimeType)
			if err != nil {
				failed.Add(1)
				report("%s: %v\n", path, err)
				return nil
			}
			res, err := u.Upload(ctx, p)
			if err != nil {
				failed.Add(1)
				report("%s: %v\n", path, err)
				return nil
			}
			if res.HasBody {
				report("%s: %d %s\n", path, res.StatusCode, res.Body)
			} else {
				report("%s: %d\n", path, res.StatusCode)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(failed.Load())
}
