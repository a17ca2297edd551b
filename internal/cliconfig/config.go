package cliconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/audioship/internal/collector"
	"github.com/bft-labs/audioship/pkg/outbox"
	"github.com/bft-labs/audioship/pkg/upload"
)

// Config holds CLI configuration for audioship.
type Config struct {
	Destination      string
	AuthToken        string
	Timeout          time.Duration
	FieldName        string
	MIMEType         string
	MaxResponseBytes int

	WatchDir        string
	StateDir        string
	Pattern         string
	SettleDelay     time.Duration
	RetryInitial    time.Duration
	RetryMax        time.Duration
	MaxAttempts     int
	Concurrency     int
	DeleteDelivered bool
	Once            bool

	ListenAddr     string
	UploadDir      string
	MaxUploadBytes int

	LogLevel string
}

// DefaultConfig returns a Config with default values. There is no default
// destination; it must come from a flag, the environment or the config file.
func DefaultConfig() Config {
	ob := outbox.DefaultConfig()
	col := collector.DefaultConfig()
	return Config{
		Timeout:          upload.DefaultTimeout,
		FieldName:        upload.DefaultFieldName,
		MaxResponseBytes: upload.DefaultMaxResponseBytes,
		Pattern:          ob.Pattern,
		SettleDelay:      ob.SettleDelay,
		RetryInitial:     ob.RetryInitial,
		RetryMax:         ob.RetryMax,
		MaxAttempts:      ob.MaxAttempts,
		Concurrency:      ob.Concurrency,
		ListenAddr:       col.Addr,
		UploadDir:        col.UploadDir,
		MaxUploadBytes:   int(col.MaxUploadBytes),
		LogLevel:         "info",
	}
}

// ValidateClient checks the settings needed to upload.
func (c *Config) ValidateClient() error {
	if c.Destination == "" {
		return errors.New("destination is required")
	}
	if _, err := upload.ParseDestination(c.Destination); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return c.validateLogLevel()
}

// ValidateWatch checks the settings needed by the outbox agent and derives
// StateDir from WatchDir when unset.
func (c *Config) ValidateWatch() error {
	if err := c.ValidateClient(); err != nil {
		return err
	}
	if c.WatchDir == "" {
		return errors.New("watch-dir is required")
	}
	if c.StateDir == "" {
		c.StateDir = c.WatchDir
	}
	if c.RetryInitial <= 0 || c.RetryMax <= 0 {
		return errors.New("retry intervals must be positive")
	}
	return nil
}

// ValidateCollector checks the settings needed to run the collector.
func (c *Config) ValidateCollector() error {
	if c.ListenAddr == "" {
		return errors.New("listen address is required")
	}
	if c.UploadDir == "" {
		return errors.New("upload-dir is required")
	}
	return c.validateLogLevel()
}

func (c *Config) validateLogLevel() error {
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// UploadConfig converts to the upload client configuration.
func (c Config) UploadConfig() upload.Config {
	return upload.Config{
		Destination:      c.Destination,
		Timeout:          c.Timeout,
		AuthToken:        c.AuthToken,
		FieldName:        c.FieldName,
		MaxResponseBytes: int64(c.MaxResponseBytes),
	}
}

// OutboxConfig converts to the outbox agent configuration.
func (c Config) OutboxConfig() outbox.Config {
	return outbox.Config{
		WatchDir:        c.WatchDir,
		StateDir:        c.StateDir,
		Pattern:         c.Pattern,
		MIMEType:        c.MIMEType,
		SettleDelay:     c.SettleDelay,
		RetryInitial:    c.RetryInitial,
		RetryMax:        c.RetryMax,
		MaxAttempts:     c.MaxAttempts,
		Concurrency:     c.Concurrency,
		DeleteDelivered: c.DeleteDelivered,
		Once:            c.Once,
	}
}

// CollectorConfig converts to the collector configuration.
func (c Config) CollectorConfig() collector.Config {
	return collector.Config{
		Addr:           c.ListenAddr,
		UploadDir:      c.UploadDir,
		FieldName:      c.FieldName,
		MaxUploadBytes: int64(c.MaxUploadBytes),
	}
}

// Masked returns a copy safe for logging.
func (c Config) Masked() Config {
	if c.AuthToken != "" {
		c.AuthToken = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setIntAllowZero is setInt for settings where 0 is meaningful.
func (s *configSetter) setIntAllowZero(flag string, value *int, dst *int) {
	if value == nil || *value < 0 || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setNonNegativeIntFromString parses a string to int and accepts 0.
func (s *configSetter) setNonNegativeIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return fmt.Errorf("%s must not be negative", flag)
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" (case-insensitive) as true.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	v := strings.ToLower(value)
	*dst = v == "true" || v == "1"
}
