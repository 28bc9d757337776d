// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	applog "spectrograph/internal/log"
	"spectrograph/pkg/bitint"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug mode (forces debug logging).
	LogLevel  string          `yaml:"log_level"` // Logging level ("debug", "info", "warn", "error").
	Audio     AudioConfig     `yaml:"audio"`     // Capture settings.
	Analysis  AnalysisConfig  `yaml:"analysis"`  // Spectral transform settings.
	Loop      LoopConfig      `yaml:"loop"`      // Cadence and tick budget.
	Metadata  MetadataConfig  `yaml:"metadata"`  // "Now playing" polling.
	Display   DisplayConfig   `yaml:"display"`   // Renderer selection.
	Transport TransportConfig `yaml:"transport"` // Network sinks for rendered spectra.
	Metrics   MetricsConfig   `yaml:"metrics"`   // Prometheus endpoint.
}

// AudioConfig holds settings related to audio input.
type AudioConfig struct {
	Source          string  `yaml:"source"`            // "device", "file" or "tone".
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index for audio input (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Sample rate in Hz (e.g., 44100, 48000).
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per read; also the spectrum length.
	LowLatency      bool    `yaml:"low_latency"`       // Request low latency settings from PortAudio device.
	InputChannels   int     `yaml:"input_channels"`    // 1 for mono, 2 for stereo.
	File            string  `yaml:"file"`              // WAV, MP3 or Ogg file for the "file" source.
	LoopFile        bool    `yaml:"loop_file"`         // Rewind the file source at end of stream.
	ToneFrequency   float64 `yaml:"tone_frequency"`    // Frequency of the "tone" source in Hz.
}

// AnalysisConfig selects the spectral transform.
type AnalysisConfig struct {
	Mode          string `yaml:"mode"`           // "spectrogram" (short-time) or "spectrum" (single frame).
	SegmentLength int    `yaml:"segment_length"` // Samples per short-time segment (power of 2).
	Window        string `yaml:"window"`         // Window function name (e.g., "Hann", "Hamming").
}

// LoopConfig controls the loop cadence.
type LoopConfig struct {
	Interval  time.Duration `yaml:"interval"`   // Delay between ticks.
	TickLimit int           `yaml:"tick_limit"` // Stop after this many ticks (0 for unbounded).
}

// MetadataConfig holds settings for the now-playing poller.
type MetadataConfig struct {
	Enabled      bool          `yaml:"enabled"`       // Poll for now-playing metadata.
	Provider     string        `yaml:"provider"`      // "spotify" or "static".
	Interval     time.Duration `yaml:"interval"`      // Delay between polls.
	Timeout      time.Duration `yaml:"timeout"`       // Upper bound for a single poll.
	BaseURL      string        `yaml:"base_url"`      // Override for the metadata API root.
	AccessToken  string        `yaml:"access_token"`  // Pre-established bearer token.
	RefreshToken string        `yaml:"refresh_token"` // Refresh token; requires client credentials.
	ClientID     string        `yaml:"client_id"`     // OAuth2 client ID for token refresh.
	ClientSecret string        `yaml:"client_secret"` // OAuth2 client secret for token refresh.
	Market       string        `yaml:"market"`        // ISO 3166-1 alpha-2 market filter (optional).
	MaxFailures  int           `yaml:"max_failures"`  // Consecutive failures before polling pauses.
	ResetTimeout time.Duration `yaml:"reset_timeout"` // Pause length after MaxFailures.
	StaticTitle  string        `yaml:"static_title"`  // Title reported by the "static" provider.
	StaticArtist string        `yaml:"static_artist"` // Artist reported by the "static" provider.
}

// DisplayConfig selects and tunes the renderer.
type DisplayConfig struct {
	Renderer string  `yaml:"renderer"` // "terminal" or "log".
	FloorDB  float64 `yaml:"floor_db"` // Lowest level shown by the heat map.
}

// TransportConfig holds settings related to sending rendered spectra over the network.
type TransportConfig struct {
	WebSocketAddr    string        `yaml:"websocket_addr"`     // Listen address for the websocket sink (empty to disable).
	UDPEnabled       bool          `yaml:"udp_enabled"`        // Enable sending spectra over UDP.
	UDPTargetAddress string        `yaml:"udp_target_address"` // Target address and port for UDP packets (e.g., "127.0.0.1:9090").
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`  // Interval between sending UDP packets.
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"` // Address serving /metrics (empty to disable).
}

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches default locations ("config.yaml"). If no file is found, it uses built-in
// defaults. After loading defaults or from file, it applies environment variable
// overrides and validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		candidates := []string{
			"config.yaml",
			"spectrograph.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks every section and returns the first problem found, wrapped
// in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if _, ok := applog.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return invalid("unknown log_level %q", c.LogLevel)
	}

	// Audio Validation
	switch c.Audio.Source {
	case SourceDevice, SourceTone:
	case SourceFile:
		if c.Audio.File == "" {
			return invalid("audio.file must be set when audio.source is %q", SourceFile)
		}
	default:
		return invalid("unknown audio.source %q", c.Audio.Source)
	}
	if c.Audio.InputDevice < MinDeviceID {
		return invalid("audio.input_device %d is below %d", c.Audio.InputDevice, MinDeviceID)
	}
	if c.Audio.SampleRate < MinSampleRate || c.Audio.SampleRate > MaxSampleRate {
		return invalid("audio.sample_rate %.0f outside [%d, %d]", c.Audio.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if c.Audio.InputChannels < 1 || c.Audio.InputChannels > MaxInputChannels {
		return invalid("audio.input_channels must be 1 or 2, got %d", c.Audio.InputChannels)
	}
	if c.Audio.FramesPerBuffer <= 0 || c.Audio.FramesPerBuffer > MaxBufferFrames {
		return invalid("audio.frames_per_buffer %d outside (0, %d]", c.Audio.FramesPerBuffer, MaxBufferFrames)
	}
	if c.Audio.Source == SourceTone && (c.Audio.ToneFrequency <= 0 || c.Audio.ToneFrequency >= c.Audio.SampleRate/2) {
		return invalid("audio.tone_frequency %.1f must be in (0, %.1f)", c.Audio.ToneFrequency, c.Audio.SampleRate/2)
	}

	// Analysis Validation
	switch c.Analysis.Mode {
	case ModeSpectrogram, ModeSpectrum:
	default:
		return invalid("unknown analysis.mode %q", c.Analysis.Mode)
	}
	if c.Analysis.SegmentLength < MinSegmentLength {
		return invalid("analysis.segment_length %d is below %d", c.Analysis.SegmentLength, MinSegmentLength)
	}
	if !bitint.IsPowerOfTwo(c.Analysis.SegmentLength) {
		return invalid("analysis.segment_length %d is not a power of 2 (try %d)",
			c.Analysis.SegmentLength, bitint.NextPowerOfTwo(c.Analysis.SegmentLength))
	}

	// Loop Validation
	if c.Loop.Interval < 0 {
		return invalid("loop.interval must not be negative")
	}
	if c.Loop.TickLimit < 0 {
		return invalid("loop.tick_limit must not be negative")
	}

	// Metadata Validation
	if c.Metadata.Enabled {
		switch c.Metadata.Provider {
		case ProviderSpotify:
			if c.Metadata.AccessToken == "" && c.Metadata.RefreshToken == "" {
				return invalid("metadata.access_token or metadata.refresh_token must be set for %q", ProviderSpotify)
			}
			if c.Metadata.RefreshToken != "" && (c.Metadata.ClientID == "" || c.Metadata.ClientSecret == "") {
				return invalid("metadata.client_id and metadata.client_secret are required with a refresh token")
			}
		case ProviderStatic:
		default:
			return invalid("unknown metadata.provider %q", c.Metadata.Provider)
		}
		if c.Metadata.Interval <= 0 {
			return invalid("metadata.interval must be positive")
		}
		if c.Metadata.Timeout <= 0 {
			return invalid("metadata.timeout must be positive")
		}
	}

	// Display Validation
	switch c.Display.Renderer {
	case RendererTerminal, RendererLog:
	default:
		return invalid("unknown display.renderer %q", c.Display.Renderer)
	}
	if c.Display.FloorDB >= 0 {
		return invalid("display.floor_db must be negative, got %.1f", c.Display.FloorDB)
	}

	// Transport Validation
	if c.Transport.UDPEnabled {
		if c.Transport.UDPTargetAddress == "" {
			return invalid("transport.udp_target_address must be set when UDP is enabled")
		}
		if c.Transport.UDPSendInterval <= 0 {
			return invalid("transport.udp_send_interval must be positive when UDP is enabled")
		}
	}

	return nil
}

// applyEnvOverrides lets secrets and deployment knobs come from the environment
// instead of the config file. Values that fail to parse are ignored.
func (cfg *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Debug = bVal
			applog.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		applog.Debugf("configuration: overriding log_level from env: %s", val)
	}

	// ENV_SPOTIFY_{...}
	// Credentials for the metadata provider. Values are never logged.
	secrets := []struct {
		name string
		dst  *string
	}{
		{"ENV_SPOTIFY_ACCESS_TOKEN", &cfg.Metadata.AccessToken},
		{"ENV_SPOTIFY_REFRESH_TOKEN", &cfg.Metadata.RefreshToken},
		{"ENV_SPOTIFY_CLIENT_ID", &cfg.Metadata.ClientID},
		{"ENV_SPOTIFY_CLIENT_SECRET", &cfg.Metadata.ClientSecret},
	}
	for _, s := range secrets {
		if val, ok := os.LookupEnv(s.name); ok {
			*s.dst = val
			applog.Debugf("configuration: overriding %s from env", s.name)
		}
	}

	// ENV_UDP_{...}
	// These are specific to the transport layer.

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			cfg.Transport.UDPEnabled = bVal
			applog.Debugf("configuration: overriding transport.udp_enabled from env: %v", bVal)
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		applog.Debugf("configuration: overriding transport.udp_target_address from env: %s", val)
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Transport.UDPSendInterval = dur
			applog.Debugf("configuration: overriding transport.udp_send_interval from env: %s", dur)
		}
	}

	// ENV_METRICS_ADDR
	if val, ok := os.LookupEnv("ENV_METRICS_ADDR"); ok {
		cfg.Metrics.ListenAddr = val
		applog.Debugf("configuration: overriding metrics.listen_addr from env: %s", val)
	}
}
