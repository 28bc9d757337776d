package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spectrograph/cmd"
	"spectrograph/internal/audio"
	"spectrograph/internal/config"
	applog "spectrograph/internal/log"
	"spectrograph/internal/loop"
	"spectrograph/internal/metadata"
	"spectrograph/internal/observe"
	"spectrograph/internal/render"
	"spectrograph/internal/spectral"
	"spectrograph/internal/transport"
	"spectrograph/internal/transport/udp"
	"spectrograph/internal/tui"
	"spectrograph/pkg/build"

	"golang.org/x/sync/errgroup"
)

// logEvery is how often the log renderer reports when no terminal is used.
const logEvery = 20

// main is the entry point for the spectrograph.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase:
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//   - Assemble source, renderers, metadata poller and metrics
//
// 2. Loop Phase:
//   - Capture → transform → render until interrupted, drained or the tick
//     limit is reached
//
// 3. Shutdown Phase:
//   - The controller closes the source and then the renderers
//   - Network sinks and the metrics endpoint stop with the loop
func main() {
	os.Exit(run())
}

func run() int {
	// ==================== STARTUP PHASE ====================

	if err := build.Initialize(); err != nil {
		applog.Debugf("build: %v (development build)", err)
	}

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if !opts.Start && opts.Command == "" {
		return 0
	}
	cfg := opts.Config
	configureLogging(cfg)

	usesPortAudio := opts.Command != "" || cfg.Audio.Source == config.SourceDevice
	if usesPortAudio {
		if err := audio.Initialize(); err != nil {
			applog.Errorf("%v", err)
			return 1
		}
		defer func() {
			if err := audio.Terminate(); err != nil {
				applog.Warnf("%v", err)
			}
		}()
	}

	switch opts.Command {
	case cmd.CommandList:
		if err := audio.ListDevices(os.Stdout); err != nil {
			applog.Errorf("list devices: %v", err)
			return 1
		}
		return 0
	case cmd.CommandDevices:
		sel, err := tui.PickDevice()
		if err != nil {
			applog.Errorf("device picker: %v", err)
			return 1
		}
		if sel == nil {
			return 0
		}
		cfg.Audio.Source = config.SourceDevice
		cfg.Audio.InputDevice = sel.DeviceID
		cfg.Audio.SampleRate = sel.SampleRate
		applog.Infof("selected device %d (%s) at %.0f Hz", sel.DeviceID, sel.DeviceName, sel.SampleRate)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// Metrics are always recorded; the endpoint is optional.
	provider, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    build.GetBuildFlags().Name,
		ServiceVersion: build.GetBuildFlags().Version,
	})
	if err != nil {
		applog.Errorf("%v", err)
		return 1
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			applog.Warnf("metrics shutdown: %v", err)
		}
	}()
	metrics, err := observe.NewMetrics(provider)
	if err != nil {
		applog.Errorf("%v", err)
		return 1
	}

	source := newSource(cfg)

	renderer, notifier, err := newRenderers(ctx, cfg, cancel)
	if err != nil {
		applog.Errorf("%v", err)
		return 1
	}

	window, err := spectral.ParseWindowFunc(cfg.Analysis.Window)
	if err != nil {
		applog.Warnf("%v, using %s", err, window)
	}

	loopOpts := []loop.Option{
		loop.WithNotifier(notifier),
		loop.WithMetrics(metrics),
	}
	if cfg.Metadata.Enabled {
		poller, err := newPoller(ctx, cfg.Metadata, metrics)
		if err != nil {
			_ = renderer.Close()
			applog.Errorf("metadata: %v", err)
			return 1
		}
		loopOpts = append(loopOpts, loop.WithWatcher(poller))
	}

	controller, err := loop.New(loopConfig(cfg, window), source, renderer, loopOpts...)
	if err != nil {
		_ = renderer.Close()
		applog.Errorf("%v", err)
		return 1
	}

	// ==================== LOOP PHASE ====================

	// Log lines would tear the terminal UI.
	if cfg.Display.Renderer == config.RendererTerminal && applog.GetLevel() != applog.LevelDebug {
		applog.SetOutput(io.Discard)
	}

	var interrupted bool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := controller.Run(gctx)
		interrupted = gctx.Err() != nil
		cancel()
		return err
	})
	if cfg.Metrics.ListenAddr != "" {
		g.Go(func() error {
			return observe.Serve(gctx, cfg.Metrics.ListenAddr, provider.Handler())
		})
	}

	err = g.Wait()

	// ==================== SHUTDOWN PHASE ====================

	applog.SetOutput(os.Stderr)
	if terr := controller.TeardownErr(); terr != nil {
		applog.Warnf("shutdown: %v", terr)
	}
	if interrupted && err == nil {
		fmt.Println("Stopping...")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		applog.Errorf("%v", err)
		return 1
	}
	return 0
}

// loopConfig maps the loaded configuration onto the controller's settings.
func loopConfig(cfg *config.Config, window spectral.WindowFunc) loop.Config {
	ticks, _ := cfg.Loop.Limit()
	return loop.Config{
		Params: audio.Params{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.InputChannels,
			FrameSize:  cfg.Audio.FramesPerBuffer,
		},
		Mode:          cfg.Analysis.Mode,
		SegmentLength: cfg.Analysis.SegmentLength,
		Window:        window,
		Interval:      cfg.Loop.Interval,
		TickLimit:     ticks,
	}
}

// configureLogging applies the configured level.
func configureLogging(cfg *config.Config) {
	level, ok := applog.ParseLevel(cfg.LogLevel)
	if !ok {
		level = applog.LevelInfo
	}
	if cfg.Debug {
		level = applog.LevelDebug
	}
	applog.SetLevel(level)
}

func newSource(cfg *config.Config) audio.Source {
	switch cfg.Audio.Source {
	case config.SourceFile:
		return audio.NewFileSource(cfg.Audio.File, cfg.Audio.LoopFile)
	case config.SourceTone:
		return audio.NewToneSource(cfg.Audio.ToneFrequency)
	default:
		return audio.NewPortAudioSource(cfg.Audio.InputDevice, cfg.Audio.LowLatency)
	}
}

// newRenderers builds the display and any network sinks behind it. stop is
// called when the user quits from the terminal UI.
func newRenderers(ctx context.Context, cfg *config.Config, stop func()) (render.Renderer, render.Notifier, error) {
	var (
		display  render.Renderer
		notifier render.Notifier
	)
	switch cfg.Display.Renderer {
	case config.RendererTerminal:
		term, err := render.NewTerminal(stop, cfg.Display.FloorDB)
		if err != nil {
			return nil, nil, err
		}
		display, notifier = term, term
	default:
		display = render.NewLogging(logEvery)
		notifier = render.NewConsole(os.Stdout)
	}

	sinks, err := newSinks(ctx, cfg.Transport)
	if err != nil {
		_ = display.Close()
		return nil, nil, err
	}
	if len(sinks) == 0 {
		return display, notifier, nil
	}
	return render.Multi{display, transport.NewSink(sinks...)}, notifier, nil
}

// newSinks starts the configured network transports.
func newSinks(ctx context.Context, tc config.TransportConfig) ([]transport.Transport, error) {
	var sinks []transport.Transport

	if tc.WebSocketAddr != "" {
		ws := transport.NewWebSocket(tc.WebSocketAddr, 0)
		if err := ws.Start(); err != nil {
			_ = ws.Close()
			return nil, err
		}
		applog.Infof("transport: websocket listening on %s%s", tc.WebSocketAddr, transport.SpectrumPath)
		sinks = append(sinks, ws)
	}

	if tc.UDPEnabled {
		sender, err := udp.NewSender(tc.UDPTargetAddress)
		if err != nil {
			closeAll(sinks)
			return nil, err
		}
		latest := &transport.Latest{}
		pub, err := udp.NewPublisher(tc.UDPSendInterval, sender, latest)
		if err != nil {
			_ = sender.Close()
			closeAll(sinks)
			return nil, err
		}
		pub.Start(ctx)
		applog.Infof("transport: publishing spectra to udp://%s every %s", tc.UDPTargetAddress, tc.UDPSendInterval)
		sinks = append(sinks, latest, publisherTransport{pub: pub, sender: sender})
	}

	return sinks, nil
}

// publisherTransport stops the UDP publisher and its socket when the sink
// closes. The publisher reads from Latest, so Send has nothing to do.
type publisherTransport struct {
	pub    *udp.Publisher
	sender *udp.Sender
}

func (p publisherTransport) Send(transport.Snapshot) error { return nil }

func (p publisherTransport) Close() error {
	return errors.Join(p.pub.Close(), p.sender.Close())
}

func closeAll(ts []transport.Transport) {
	for _, t := range ts {
		_ = t.Close()
	}
}

func newPoller(ctx context.Context, mc config.MetadataConfig, metrics *observe.Metrics) (*metadata.Poller, error) {
	var probe metadata.Probe
	switch mc.Provider {
	case config.ProviderStatic:
		var track *metadata.Track
		if mc.StaticTitle != "" {
			track = &metadata.Track{Title: mc.StaticTitle, Artist: mc.StaticArtist}
		}
		probe = metadata.StaticProbe{Track: track}
	default:
		ts, err := metadata.Credentials{
			AccessToken:  mc.AccessToken,
			RefreshToken: mc.RefreshToken,
			ClientID:     mc.ClientID,
			ClientSecret: mc.ClientSecret,
		}.TokenSource(ctx)
		if err != nil {
			return nil, err
		}
		var spotifyOpts []metadata.SpotifyOption
		if mc.BaseURL != "" {
			spotifyOpts = append(spotifyOpts, metadata.WithBaseURL(mc.BaseURL))
		}
		if mc.Market != "" {
			spotifyOpts = append(spotifyOpts, metadata.WithMarket(mc.Market))
		}
		probe = metadata.NewSpotifyProbe(ts, spotifyOpts...)
	}

	breaker := metadata.NewBreaker(metadata.BreakerConfig{
		Name:         "metadata." + mc.Provider,
		MaxFailures:  mc.MaxFailures,
		ResetTimeout: mc.ResetTimeout,
	})
	return metadata.NewPoller(probe,
		metadata.WithInterval(mc.Interval),
		metadata.WithTimeout(mc.Timeout),
		metadata.WithBreaker(breaker),
		metadata.WithObserver(metrics.ProbeObserver()),
	), nil
}
