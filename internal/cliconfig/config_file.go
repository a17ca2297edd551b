package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Destination      string `toml:"destination"`
	AuthToken        string `toml:"auth_token"`
	Timeout          string `toml:"timeout"`
	FieldName        string `toml:"field_name"`
	MIMEType         string `toml:"mime_type"`
	MaxResponseBytes int    `toml:"max_response_bytes"`
	WatchDir         string `toml:"watch_dir"`
	StateDir         string `toml:"state_dir"`
	Pattern          string `toml:"pattern"`
	SettleDelay      string `toml:"settle_delay"`
	RetryInitial     string `toml:"retry_initial"`
	RetryMax         string `toml:"retry_max"`
	MaxAttempts      *int   `toml:"max_attempts"`
	Concurrency      int    `toml:"concurrency"`
	DeleteDelivered  *bool  `toml:"delete_delivered"`
	Once             *bool  `toml:"once"`
	ListenAddr       string `toml:"listen_addr"`
	UploadDir        string `toml:"upload_dir"`
	MaxUploadBytes   int    `toml:"max_upload_bytes"`
	LogLevel         string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.audioship/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".audioship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("destination", fc.Destination, &cfg.Destination)
	s.setString("auth-token", fc.AuthToken, &cfg.AuthToken)
	s.setString("field-name", fc.FieldName, &cfg.FieldName)
	s.setString("mime-type", fc.MIMEType, &cfg.MIMEType)
	s.setString("watch-dir", fc.WatchDir, &cfg.WatchDir)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)
	s.setString("pattern", fc.Pattern, &cfg.Pattern)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("upload-dir", fc.UploadDir, &cfg.UploadDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.Timeout, &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("settle-delay", fc.SettleDelay, &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("retry-initial", fc.RetryInitial, &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", fc.RetryMax, &cfg.RetryMax); err != nil {
		return err
	}

	s.setInt("max-response-bytes", fc.MaxResponseBytes, &cfg.MaxResponseBytes)
	s.setIntAllowZero("max-attempts", fc.MaxAttempts, &cfg.MaxAttempts)
	s.setInt("concurrency", fc.Concurrency, &cfg.Concurrency)
	s.setInt("max-upload-bytes", fc.MaxUploadBytes, &cfg.MaxUploadBytes)

	s.setBool("delete-delivered", fc.DeleteDelivered, &cfg.DeleteDelivered)
	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
