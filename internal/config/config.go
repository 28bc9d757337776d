package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the capture → transform → render loop.
const (
	// Audio input
	DefaultSource          = SourceDevice
	DefaultDeviceID        = MinDeviceID // Default to system default device
	DefaultChannels        = 2           // Stereo, reduced to mono per tick
	DefaultFramesPerBuffer = 1024        // ~23ms at 44.1kHz
	DefaultLowLatency      = false       // Standard latency mode
	DefaultSampleRate      = 44100       // CD-quality audio
	DefaultToneFrequency   = 440.0       // A4 for the synthetic source

	// Analysis
	DefaultMode          = ModeSpectrogram
	DefaultSegmentLength = 256 // Short-time segment, 50% overlap
	MinSegmentLength     = 2
	DefaultWindow        = "Hann"

	// Loop cadence
	DefaultInterval  = 50 * time.Millisecond
	DefaultTickLimit = 0 // Unbounded

	// Metadata polling
	DefaultMetadataProvider     = ProviderSpotify
	DefaultMetadataInterval     = 2 * time.Second
	DefaultMetadataTimeout      = 5 * time.Second
	DefaultMetadataMaxFailures  = 3
	DefaultMetadataResetTimeout = 30 * time.Second

	// Display
	DefaultRenderer = RendererTerminal
	DefaultFloorDB  = -90.0

	// Transport
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 33 * time.Millisecond // ~30Hz

	// Hardware and processing limits
	MinDeviceID      = -1     // -1 represents system default device
	MinSampleRate    = 8000   // Minimum usable sample rate (Hz)
	MaxSampleRate    = 192000 // Maximum supported sample rate (Hz)
	MaxBufferFrames  = 8192   // Maximum frames per buffer
	MaxInputChannels = 2      // Mono or stereo only
)

// Source kinds.
const (
	SourceDevice = "device"
	SourceFile   = "file"
	SourceTone   = "tone"
)

// Analysis modes.
const (
	ModeSpectrogram = "spectrogram"
	ModeSpectrum    = "spectrum"
)

// Metadata providers.
const (
	ProviderSpotify = "spotify"
	ProviderStatic  = "static"
)

// Renderer kinds.
const (
	RendererTerminal = "terminal"
	RendererLog      = "log"
)

// Default returns the built-in configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Audio: AudioConfig{
			Source:          DefaultSource,
			InputDevice:     DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			InputChannels:   DefaultChannels,
			ToneFrequency:   DefaultToneFrequency,
		},
		Analysis: AnalysisConfig{
			Mode:          DefaultMode,
			SegmentLength: DefaultSegmentLength,
			Window:        DefaultWindow,
		},
		Loop: LoopConfig{
			Interval:  DefaultInterval,
			TickLimit: DefaultTickLimit,
		},
		Metadata: MetadataConfig{
			Enabled:      false,
			Provider:     DefaultMetadataProvider,
			Interval:     DefaultMetadataInterval,
			Timeout:      DefaultMetadataTimeout,
			MaxFailures:  DefaultMetadataMaxFailures,
			ResetTimeout: DefaultMetadataResetTimeout,
		},
		Display: DisplayConfig{
			Renderer: DefaultRenderer,
			FloorDB:  DefaultFloorDB,
		},
		Transport: TransportConfig{
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}

// Limit reports the configured tick budget; ok is false when the loop is
// unbounded.
func (l LoopConfig) Limit() (ticks int, ok bool) {
	if l.TickLimit <= 0 {
		return 0, false
	}
	return l.TickLimit, true
}
