package outbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Config controls the outbox agent.
type Config struct {
	// WatchDir holds the finished recordings.
	WatchDir string

	// StateDir holds the delivery ledger. Defaults to WatchDir.
	StateDir string

	// Pattern selects files by base name (filepath.Match syntax).
	Pattern string

	// MIMEType overrides extension-based detection when set.
	MIMEType string

	// SettleDelay is how long a file must remain unmodified before upload.
	SettleDelay time.Duration

	// ScanInterval is the period of full directory rescans.
	ScanInterval time.Duration

	RetryInitial time.Duration
	RetryMax     time.Duration

	// MaxAttempts bounds attempts per file modification; 0 means unlimited.
	MaxAttempts int

	// Concurrency bounds simultaneous uploads.
	Concurrency int

	// DeleteDelivered removes files once the collector accepted them.
	DeleteDelivered bool

	// Once drains the directory a single time and returns.
	Once bool
}

// DefaultConfig returns a Config with default values and no WatchDir.
func DefaultConfig() Config {
	return Config{
		Pattern:      "*.m4a",
		SettleDelay:  2 * time.Second,
		ScanInterval: 30 * time.Second,
		RetryInitial: 1 * time.Second,
		RetryMax:     1 * time.Minute,
		MaxAttempts:  5,
		Concurrency:  2,
	}
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	d := DefaultConfig()
	if c.StateDir == "" {
		c.StateDir = c.WatchDir
	}
	if c.Pattern == "" {
		c.Pattern = d.Pattern
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.ScanInterval <= 0 {
		c.ScanInterval = d.ScanInterval
	}
	if c.RetryInitial <= 0 {
		c.RetryInitial = d.RetryInitial
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.WatchDir == "" {
		return errors.New("watch dir is required")
	}
	if _, err := filepath.Match(c.Pattern, "recording.m4a"); err != nil {
		return fmt.Errorf("pattern %q: %w", c.Pattern, err)
	}
	if c.RetryMax < c.RetryInitial {
		return fmt.Errorf("retry max %s is below retry initial %s", c.RetryMax, c.RetryInitial)
	}
	if c.MaxAttempts < 0 {
		return errors.New("max attempts must not be negative")
	}
	return nil
}
