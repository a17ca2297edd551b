package upload

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultTimeout          = 30 * time.Second
	DefaultFieldName        = "file"
	DefaultMaxResponseBytes = 1 << 20
	DefaultUserAgent        = "audioship"
)

// Config controls how a Client reaches the collector.
type Config struct {
	// Destination is the collector URL used by Upload. It may be left empty
	// when every call goes through UploadTo.
	Destination string

	// Timeout bounds one upload from request start to fully read response.
	Timeout time.Duration

	// AuthToken, when set, is sent as a bearer token.
	AuthToken string

	// FieldName is the form field carrying the file.
	FieldName string

	// MaxResponseBytes caps how much of a response body is read. A larger 2xx
	// body is still a delivery, reported without a body.
	MaxResponseBytes int64

	UserAgent string
}

// DefaultConfig returns a Config with defaults and no destination.
func DefaultConfig() Config {
	return Config{
		Timeout:          DefaultTimeout,
		FieldName:        DefaultFieldName,
		MaxResponseBytes: DefaultMaxResponseBytes,
		UserAgent:        DefaultUserAgent,
	}
}

// SetDefaults fills zero-valued fields.
func (c *Config) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.FieldName == "" {
		c.FieldName = DefaultFieldName
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// Validate checks the configuration. Call SetDefaults first.
func (c Config) Validate() error {
	if c.Destination != "" {
		if _, err := ParseDestination(c.Destination); err != nil {
			return err
		}
	}
	if c.Timeout <= 0 {
		return validationError("timeout must be positive")
	}
	if c.FieldName == "" || strings.ContainsAny(c.FieldName, "\r\n\"") {
		return validationError("invalid form field name %q", c.FieldName)
	}
	if c.MaxResponseBytes <= 0 {
		return validationError("max response bytes must be positive")
	}
	if strings.ContainsAny(c.AuthToken, "\r\n") {
		return validationError("auth token contains line breaks")
	}
	return nil
}

// ParseDestination accepts absolute http and https URLs with a host.
func ParseDestination(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, validationError("destination is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: fmt.Sprintf("destination %q", raw), Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, validationError("destination %q must use http or https", raw)
	}
	if u.Host == "" {
		return nil, validationError("destination %q has no host", raw)
	}
	return u, nil
}
