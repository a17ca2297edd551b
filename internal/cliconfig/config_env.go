package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (AUDIOSHIP_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("destination", os.Getenv("AUDIOSHIP_DESTINATION"), &cfg.Destination)
	s.setString("auth-token", os.Getenv("AUDIOSHIP_AUTH_TOKEN"), &cfg.AuthToken)
	s.setString("field-name", os.Getenv("AUDIOSHIP_FIELD_NAME"), &cfg.FieldName)
	s.setString("mime-type", os.Getenv("AUDIOSHIP_MIME_TYPE"), &cfg.MIMEType)
	s.setString("watch-dir", os.Getenv("AUDIOSHIP_WATCH_DIR"), &cfg.WatchDir)
	s.setString("state-dir", os.Getenv("AUDIOSHIP_STATE_DIR"), &cfg.StateDir)
	s.setString("pattern", os.Getenv("AUDIOSHIP_PATTERN"), &cfg.Pattern)
	s.setString("listen", os.Getenv("AUDIOSHIP_LISTEN_ADDR"), &cfg.ListenAddr)
	s.setString("upload-dir", os.Getenv("AUDIOSHIP_UPLOAD_DIR"), &cfg.UploadDir)
	s.setString("log-level", os.Getenv("AUDIOSHIP_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("timeout", os.Getenv("AUDIOSHIP_TIMEOUT"), &cfg.Timeout); err != nil {
		return err
	}
	if err := s.setDuration("settle-delay", os.Getenv("AUDIOSHIP_SETTLE_DELAY"), &cfg.SettleDelay); err != nil {
		return err
	}
	if err := s.setDuration("retry-initial", os.Getenv("AUDIOSHIP_RETRY_INITIAL"), &cfg.RetryInitial); err != nil {
		return err
	}
	if err := s.setDuration("retry-max", os.Getenv("AUDIOSHIP_RETRY_MAX"), &cfg.RetryMax); err != nil {
		return err
	}

	if err := s.setIntFromString("max-response-bytes", os.Getenv("AUDIOSHIP_MAX_RESPONSE_BYTES"), &cfg.MaxResponseBytes); err != nil {
		return err
	}
	if err := s.setNonNegativeIntFromString("max-attempts", os.Getenv("AUDIOSHIP_MAX_ATTEMPTS"), &cfg.MaxAttempts); err != nil {
		return err
	}
	if err := s.setIntFromString("concurrency", os.Getenv("AUDIOSHIP_CONCURRENCY"), &cfg.Concurrency); err != nil {
		return err
	}
	if err := s.setIntFromString("max-upload-bytes", os.Getenv("AUDIOSHIP_MAX_UPLOAD_BYTES"), &cfg.MaxUploadBytes); err != nil {
		return err
	}

	s.setBoolFromString("delete-delivered", os.Getenv("AUDIOSHIP_DELETE_DELIVERED"), &cfg.DeleteDelivered)
	s.setBoolFromString("once", os.Getenv("AUDIOSHIP_ONCE"), &cfg.Once)

	return nil
}
