package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/audioship/internal/cliconfig"
)

const longHelp = `Deliver finished audio recordings to an HTTP collector as multipart/form-data.

Commands:
  upload     send one or more files and print the collector's response
  watch      upload recordings as they appear in a directory
  collector  run a minimal receiving endpoint for local testing

Configuration is read from $HOME/.audioship/config.toml, then AUDIOSHIP_*
environment variables, then flags. There is no built-in destination.`

var exampleUsage = strings.TrimSpace(`
  audioship upload --destination https://collector.example.com/upload memo.m4a
  audioship watch --watch-dir ~/Recordings --once
  audioship collector --listen :5000 --upload-dir ./uploads
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the merged configuration shared by all subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	log     zerolog.Logger
}

// load merges file, environment and explicitly set flags, in that order of
// increasing precedence.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, changed); err != nil {
			return err
		}
	} else if c.cfgPath != "" {
		return fmt.Errorf("config file %s not found", c.cfgPath)
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, changed); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	c.log = cliconfig.Logger(c.cfg.LogLevel)
	return nil
}

func newCLI() *cli {
	return &cli{
		cfg: cliconfig.DefaultConfig(),
		log: cliconfig.Logger("info"),
	}
}

func newRootCommand(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:           "audioship",
		Short:         "Reliable audio recording uploads",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.audioship/config.toml)")
	pf.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
	pf.StringVar(&c.cfg.Destination, "destination", c.cfg.Destination, "collector upload URL")
	pf.StringVar(&c.cfg.AuthToken, "auth-token", c.cfg.AuthToken, "bearer token sent with each upload")
	pf.DurationVar(&c.cfg.Timeout, "timeout", c.cfg.Timeout, "per-upload timeout")
	pf.StringVar(&c.cfg.FieldName, "field-name", c.cfg.FieldName, "multipart form field carrying the file")
	pf.StringVar(&c.cfg.MIMEType, "mime-type", c.cfg.MIMEType, "content type of uploaded files (default: from extension)")
	pf.IntVar(&c.cfg.MaxResponseBytes, "max-response-bytes", c.cfg.MaxResponseBytes, "largest accepted response body")
	pf.IntVar(&c.cfg.Concurrency, "concurrency", c.cfg.Concurrency, "maximum simultaneous uploads")

	root.AddCommand(
		newUploadCommand(c),
		newWatchCommand(c),
		newCollectorCommand(c),
	)
	return root
}

func main() {
	c := newCLI()
	if err := newRootCommand(c).Execute(); err != nil {
		c.log.Error().Err(err).Msg("audioship")
		os.Exit(1)
	}
}
