// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Analysis.Mode != DefaultMode || cfg.Audio.FramesPerBuffer != DefaultFramesPerBuffer {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	t.Parallel()
	cfg, err := LoadConfig("nonexistent.yaml")
	if err == nil {
		t.Errorf("expected error for missing file, got nil")
	}
	if cfg != nil {
		t.Errorf("expected nil config on error, got %+v", cfg)
	}
}

func TestLoadConfig_UnmarshalError(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, ":\n:bad")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Error("expected unmarshal error, got nil or wrong error")
	}
}

func TestLoadConfig_FileValues(t *testing.T) {
	t.Parallel()
	path := writeTempConfig(t, `
log_level: debug
audio:
  source: tone
  sample_rate: 48000
  input_channels: 1
  frames_per_buffer: 2048
  tone_frequency: 1000
analysis:
  mode: spectrum
  segment_length: 512
  window: Hamming
loop:
  interval: 10ms
  tick_limit: 25
metadata:
  enabled: true
  provider: static
  interval: 500ms
  timeout: 1s
  static_title: Song
  static_artist: Band
display:
  renderer: log
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Audio.SampleRate != 48000 || cfg.Audio.InputChannels != 1 || cfg.Audio.FramesPerBuffer != 2048 {
		t.Errorf("audio section not applied: %+v", cfg.Audio)
	}
	if cfg.Analysis.Mode != ModeSpectrum || cfg.Analysis.SegmentLength != 512 || cfg.Analysis.Window != "Hamming" {
		t.Errorf("analysis section not applied: %+v", cfg.Analysis)
	}
	if cfg.Loop.Interval != 10*time.Millisecond {
		t.Errorf("loop.interval = %s, want 10ms", cfg.Loop.Interval)
	}
	if n, ok := cfg.Loop.Limit(); !ok || n != 25 {
		t.Errorf("Loop.Limit() = (%d, %v), want (25, true)", n, ok)
	}
	if cfg.Metadata.Timeout != time.Second || cfg.Metadata.StaticArtist != "Band" {
		t.Errorf("metadata section not applied: %+v", cfg.Metadata)
	}
	// Unset keys keep their defaults.
	if cfg.Metadata.MaxFailures != DefaultMetadataMaxFailures {
		t.Errorf("metadata.max_failures = %d, want default %d", cfg.Metadata.MaxFailures, DefaultMetadataMaxFailures)
	}
}

func TestLoopLimitUnbounded(t *testing.T) {
	t.Parallel()
	if _, ok := (LoopConfig{}).Limit(); ok {
		t.Error("zero tick_limit should be unbounded")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown source", func(c *Config) { c.Audio.Source = "mic" }, "audio.source"},
		{"file without path", func(c *Config) { c.Audio.Source = SourceFile }, "audio.file"},
		{"three channels", func(c *Config) { c.Audio.InputChannels = 3 }, "input_channels"},
		{"low sample rate", func(c *Config) { c.Audio.SampleRate = 100 }, "sample_rate"},
		{"zero frames", func(c *Config) { c.Audio.FramesPerBuffer = 0 }, "frames_per_buffer"},
		{"tone above nyquist", func(c *Config) {
			c.Audio.Source = SourceTone
			c.Audio.ToneFrequency = 30000
		}, "tone_frequency"},
		{"unknown mode", func(c *Config) { c.Analysis.Mode = "waterfall" }, "analysis.mode"},
		{"segment not pow2", func(c *Config) { c.Analysis.SegmentLength = 300 }, "try 512"},
		{"segment of one", func(c *Config) { c.Analysis.SegmentLength = 1 }, "below 2"},
		{"shortest segment", func(c *Config) { c.Analysis.SegmentLength = MinSegmentLength }, ""},
		{"negative tick limit", func(c *Config) { c.Loop.TickLimit = -1 }, "tick_limit"},
		{"spotify without token", func(c *Config) { c.Metadata.Enabled = true }, "access_token"},
		{"refresh without client", func(c *Config) {
			c.Metadata.Enabled = true
			c.Metadata.RefreshToken = "r"
		}, "client_id"},
		{"zero probe timeout", func(c *Config) {
			c.Metadata.Enabled = true
			c.Metadata.Provider = ProviderStatic
			c.Metadata.Timeout = 0
		}, "metadata.timeout"},
		{"unknown renderer", func(c *Config) { c.Display.Renderer = "gl" }, "display.renderer"},
		{"positive floor", func(c *Config) { c.Display.FloorDB = 3 }, "floor_db"},
		{"udp without target", func(c *Config) {
			c.Transport.UDPEnabled = true
			c.Transport.UDPTargetAddress = ""
		}, "udp_target_address"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENV_SPOTIFY_ACCESS_TOKEN", "token-from-env")
	t.Setenv("ENV_UDP_ENABLED", "true")
	t.Setenv("ENV_UDP_SEND_INTERVAL", "100ms")
	t.Setenv("ENV_UDP_TARGET_ADDRESS", "10.0.0.2:7000")
	t.Setenv("ENV_METRICS_ADDR", ":9464")
	t.Setenv("ENV_DEBUG", "not-a-bool")

	path := writeTempConfig(t, "metadata:\n  enabled: true\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Metadata.AccessToken != "token-from-env" {
		t.Errorf("access token = %q, want env value", cfg.Metadata.AccessToken)
	}
	if !cfg.Transport.UDPEnabled || cfg.Transport.UDPSendInterval != 100*time.Millisecond {
		t.Errorf("udp overrides not applied: %+v", cfg.Transport)
	}
	if cfg.Transport.UDPTargetAddress != "10.0.0.2:7000" {
		t.Errorf("udp target = %q", cfg.Transport.UDPTargetAddress)
	}
	if cfg.Metrics.ListenAddr != ":9464" {
		t.Errorf("metrics addr = %q", cfg.Metrics.ListenAddr)
	}
	if cfg.Debug {
		t.Error("unparseable ENV_DEBUG should be ignored")
	}
}
