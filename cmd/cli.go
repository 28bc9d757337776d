package cmd

import (
	"fmt"
	"time"

	"spectrograph/internal/config"
	"spectrograph/pkg/build"

	"github.com/spf13/cobra"
)

// One-off commands that run instead of the loop.
const (
	CommandList    = "list"
	CommandDevices = "devices"
)

// Options is the outcome of argument parsing.
type Options struct {
	Config  *config.Config
	Command string // CommandList, CommandDevices or empty
	Start   bool   // false after --help or --version
}

// flagValues holds the raw flag values; only flags the user set are applied
// over the loaded configuration.
type flagValues struct {
	configPath string

	deviceID        int
	channels        int
	sampleRate      float64
	framesPerBuffer int
	lowLatency      bool
	source          string
	file            string
	loopFile        bool
	tone            float64

	mode          string
	segmentLength int
	window        string
	interval      time.Duration
	ticks         int

	renderer string
	metadata bool
	verbose  bool
}

// ParseArgs parses args (without the program name), loads the configuration
// file and applies flag overrides.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	opts := &Options{}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Start = true
			return nil
		},
	}
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	rootCmd.SetArgs(args)

	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandList,
		Short: "List available audio devices",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandList
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   CommandDevices,
		Short: "Choose a capture device interactively, then start",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			opts.Command = CommandDevices
			opts.Start = true
		},
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&fv.configPath, "config", "",
		"Path to a YAML configuration file (default: ./config.yaml or ./spectrograph.yaml if present)")

	// Audio Input
	pf.IntVarP(&fv.deviceID, "device", "d", config.DefaultDeviceID,
		"Specify input device ID. Use 'list' command to see available devices.")
	pf.IntVarP(&fv.channels, "channels", "c", config.DefaultChannels,
		"Number of channels to capture (1=mono, 2=stereo)")
	pf.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	pf.IntVarP(&fv.framesPerBuffer, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per read (also the spectrum length)")
	pf.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	pf.StringVar(&fv.source, "source", config.DefaultSource,
		"Audio source: device, file or tone")
	pf.StringVarP(&fv.file, "file", "f", "",
		"WAV, MP3 or Ogg Vorbis file to analyse (implies --source file)")
	pf.BoolVar(&fv.loopFile, "loop-file", false,
		"Rewind the file source when it ends")
	pf.Float64Var(&fv.tone, "tone", config.DefaultToneFrequency,
		"Frequency of the synthetic tone source in Hz")

	// Analysis and Loop
	pf.StringVarP(&fv.mode, "mode", "m", config.DefaultMode,
		"Display mode: spectrogram or spectrum")
	pf.IntVar(&fv.segmentLength, "segment-length", config.DefaultSegmentLength,
		"Samples per short-time segment (power of 2)")
	pf.StringVarP(&fv.window, "window", "w", config.DefaultWindow,
		"Window function (Hann, Hamming, Blackman, ...)")
	pf.DurationVarP(&fv.interval, "interval", "i", config.DefaultInterval,
		"Delay between loop ticks")
	pf.IntVarP(&fv.ticks, "ticks", "n", config.DefaultTickLimit,
		"Stop after this many ticks (0 runs until interrupted)")

	// Display and Metadata
	pf.StringVarP(&fv.renderer, "renderer", "r", config.DefaultRenderer,
		"Renderer: terminal or log")
	pf.BoolVar(&fv.metadata, "now-playing", false,
		"Poll for now-playing metadata")

	// Debug Configuration
	pf.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if !opts.Start && opts.Command == "" {
		return opts, nil
	}

	cfg, err := loadWithOverrides(fv, pf.Changed)
	if err != nil {
		return nil, err
	}
	opts.Config = cfg
	return opts, nil
}

// loadWithOverrides reads the configuration file, then applies every flag
// for which changed reports true.
func loadWithOverrides(fv flagValues, changed func(name string) bool) (*config.Config, error) {
	cfg, err := config.LoadConfig(fv.configPath)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag  string
		apply func()
	}{
		{"device", func() { cfg.Audio.InputDevice = fv.deviceID }},
		{"channels", func() { cfg.Audio.InputChannels = fv.channels }},
		{"sample-rate", func() { cfg.Audio.SampleRate = fv.sampleRate }},
		{"frames-per-buffer", func() { cfg.Audio.FramesPerBuffer = fv.framesPerBuffer }},
		{"low-latency", func() { cfg.Audio.LowLatency = fv.lowLatency }},
		{"source", func() { cfg.Audio.Source = fv.source }},
		{"file", func() {
			cfg.Audio.File = fv.file
			if !changed("source") {
				cfg.Audio.Source = config.SourceFile
			}
		}},
		{"loop-file", func() { cfg.Audio.LoopFile = fv.loopFile }},
		{"tone", func() { cfg.Audio.ToneFrequency = fv.tone }},
		{"mode", func() { cfg.Analysis.Mode = fv.mode }},
		{"segment-length", func() { cfg.Analysis.SegmentLength = fv.segmentLength }},
		{"window", func() { cfg.Analysis.Window = fv.window }},
		{"interval", func() { cfg.Loop.Interval = fv.interval }},
		{"ticks", func() { cfg.Loop.TickLimit = fv.ticks }},
		{"renderer", func() { cfg.Display.Renderer = fv.renderer }},
		{"now-playing", func() { cfg.Metadata.Enabled = fv.metadata }},
		{"verbose", func() {
			if fv.verbose {
				cfg.LogLevel = "debug"
			}
		}},
	}

	applied := 0
	for _, o := range overrides {
		if changed(o.flag) {
			o.apply()
			applied++
		}
	}
	if applied == 0 {
		return cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("after applying flags: %w", err)
	}
	return cfg, nil
}
