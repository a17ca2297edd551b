package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/audioship/pkg/log"
)

// Logger returns the CLI logger at the given level; unknown levels fall back
// to info.
func Logger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return log.NewConsoleLogger(os.Stderr).Level(lvl)
}
