package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"AUDIOSHIP_DESTINATION":      "http://env/upload",
				"AUDIOSHIP_AUTH_TOKEN":       "env-token",
				"AUDIOSHIP_TIMEOUT":          "10s",
				"AUDIOSHIP_WATCH_DIR":        "/env/rec",
				"AUDIOSHIP_CONCURRENCY":      "3",
				"AUDIOSHIP_DELETE_DELIVERED": "true",
			},
			changed: map[string]bool{},
			expected: Config{
				Destination:     "http://env/upload",
				AuthToken:       "env-token",
				Timeout:         10 * time.Second,
				WatchDir:        "/env/rec",
				Concurrency:     3,
				DeleteDelivered: true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"AUDIOSHIP_DESTINATION": "http://env/upload",
				"AUDIOSHIP_WATCH_DIR":   "/env/rec",
			},
			changed:  map[string]bool{"destination": true},
			initial:  Config{Destination: "http://flag/upload"},
			expected: Config{Destination: "http://flag/upload", WatchDir: "/env/rec"},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"AUDIOSHIP_TIMEOUT": "soon"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"AUDIOSHIP_CONCURRENCY": "many"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "zero max attempts means unlimited",
			envVars:  map[string]string{"AUDIOSHIP_MAX_ATTEMPTS": "0"},
			changed:  map[string]bool{},
			initial:  Config{MaxAttempts: 5},
			expected: Config{MaxAttempts: 0},
		},
		{
			name:    "returns error for negative max attempts",
			envVars: map[string]string{"AUDIOSHIP_MAX_ATTEMPTS": "-1"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"AUDIOSHIP_ONCE": "1"},
			changed:  map[string]bool{},
			expected: Config{Once: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"AUDIOSHIP_ONCE": "false"},
			changed:  map[string]bool{},
			initial:  Config{Once: true},
			expected: Config{Once: false},
		},
		{
			name: "handles all field types correctly",
			envVars: map[string]string{
				"AUDIOSHIP_DESTINATION":        "https://c.example.com/upload",
				"AUDIOSHIP_AUTH_TOKEN":         "secret",
				"AUDIOSHIP_TIMEOUT":            "45s",
				"AUDIOSHIP_FIELD_NAME":         "audio",
				"AUDIOSHIP_MIME_TYPE":          "audio/wav",
				"AUDIOSHIP_MAX_RESPONSE_BYTES": "2048",
				"AUDIOSHIP_WATCH_DIR":          "/rec",
				"AUDIOSHIP_STATE_DIR":          "/state",
				"AUDIOSHIP_PATTERN":            "*.wav",
				"AUDIOSHIP_SETTLE_DELAY":       "3s",
				"AUDIOSHIP_RETRY_INITIAL":      "2s",
				"AUDIOSHIP_RETRY_MAX":          "2m",
				"AUDIOSHIP_MAX_ATTEMPTS":       "9",
				"AUDIOSHIP_CONCURRENCY":        "4",
				"AUDIOSHIP_DELETE_DELIVERED":   "TRUE",
				"AUDIOSHIP_ONCE":               "1",
				"AUDIOSHIP_LISTEN_ADDR":        ":9000",
				"AUDIOSHIP_UPLOAD_DIR":         "/srv/uploads",
				"AUDIOSHIP_MAX_UPLOAD_BYTES":   "1024",
				"AUDIOSHIP_LOG_LEVEL":          "debug",
			},
			changed: map[string]bool{},
			expected: Config{
				Destination:      "https://c.example.com/upload",
				AuthToken:        "secret",
				Timeout:          45 * time.Second,
				FieldName:        "audio",
				MIMEType:         "audio/wav",
				MaxResponseBytes: 2048,
				WatchDir:         "/rec",
				StateDir:         "/state",
				Pattern:          "*.wav",
				SettleDelay:      3 * time.Second,
				RetryInitial:     2 * time.Second,
				RetryMax:         2 * time.Minute,
				MaxAttempts:      9,
				Concurrency:      4,
				DeleteDelivered:  true,
				Once:             true,
				ListenAddr:       ":9000",
				UploadDir:        "/srv/uploads",
				MaxUploadBytes:   1024,
				LogLevel:         "debug",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() =\n%+v\nwant\n%+v", cfg, tt.expected)
			}
		})
	}
}

// Precedence order: CLI > Env > File.
func TestConfigPrecedence(t *testing.T) {
	trueVal := true

	fileConf := FileConfig{
		Destination: "http://file/upload",
		WatchDir:    "/file/rec",
		Pattern:     "*.wav",
		Once:        &trueVal,
	}

	t.Setenv("AUDIOSHIP_DESTINATION", "http://env/upload")
	t.Setenv("AUDIOSHIP_WATCH_DIR", "/env/rec")

	changed := map[string]bool{"destination": true}
	cfg := Config{Destination: "http://cli/upload"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.Destination != "http://cli/upload" {
		t.Errorf("Destination = %v, want http://cli/upload (CLI should win)", cfg.Destination)
	}
	if cfg.WatchDir != "/env/rec" {
		t.Errorf("WatchDir = %v, want /env/rec (env should override file)", cfg.WatchDir)
	}
	if cfg.Pattern != "*.wav" {
		t.Errorf("Pattern = %v, want *.wav (file should set)", cfg.Pattern)
	}
	if !cfg.Once {
		t.Error("Once = false, want true (file should set)")
	}
}
