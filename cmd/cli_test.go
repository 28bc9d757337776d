package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"spectrograph/internal/config"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := ParseArgs(nil)
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}
	if !opts.Start || opts.Command != "" {
		t.Errorf("opts = %+v, want a plain start", opts)
	}
	if opts.Config.Analysis.Mode != config.DefaultMode || opts.Config.Audio.InputDevice != config.DefaultDeviceID {
		t.Errorf("config not defaulted: %+v", opts.Config)
	}
}

func TestParseArgs_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "analysis:\n  mode: spectrum\n  segment_length: 512\nloop:\n  tick_limit: 3\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	opts, err := ParseArgs([]string{
		"--config", path,
		"--ticks", "10",
		"--interval", "5ms",
		"--file", "song.ogg",
		"-v",
	})
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}
	cfg := opts.Config

	if cfg.Analysis.Mode != config.ModeSpectrum || cfg.Analysis.SegmentLength != 512 {
		t.Errorf("file values lost: %+v", cfg.Analysis)
	}
	if cfg.Loop.TickLimit != 10 || cfg.Loop.Interval != 5*time.Millisecond {
		t.Errorf("loop flags not applied: %+v", cfg.Loop)
	}
	if cfg.Audio.Source != config.SourceFile || cfg.Audio.File != "song.ogg" {
		t.Errorf("--file should select the file source: %+v", cfg.Audio)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q, want debug with -v", cfg.LogLevel)
	}
}

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		args      []string
		command   string
		wantStart bool
	}{
		{[]string{"list"}, CommandList, false},
		{[]string{"devices", "--mode", "spectrum"}, CommandDevices, true},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			opts, err := ParseArgs(tt.args)
			if err != nil {
				t.Fatalf("ParseArgs(%v) error: %v", tt.args, err)
			}
			if opts.Command != tt.command || opts.Start != tt.wantStart {
				t.Errorf("opts = %+v, want command %q start %v", opts, tt.command, tt.wantStart)
			}
		})
	}
}

func TestParseArgs_Invalid(t *testing.T) {
	if _, err := ParseArgs([]string{"--mode", "waterfall"}); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("bad mode error = %v, want ErrInvalidConfig", err)
	}
	if _, err := ParseArgs([]string{"--no-such-flag"}); err == nil {
		t.Error("unknown flag accepted")
	}
	if _, err := ParseArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("missing config file accepted")
	}
}

func TestParseArgs_Version(t *testing.T) {
	opts, err := ParseArgs([]string{"--version"})
	if err != nil {
		t.Fatalf("ParseArgs() error: %v", err)
	}
	if opts.Start || opts.Config != nil {
		t.Errorf("--version should not start: %+v", opts)
	}
}
