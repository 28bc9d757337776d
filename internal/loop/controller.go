// SPDX-License-Identifier: MIT
/*
Package loop drives the capture → transform → render cycle.

A Controller owns one Source and one Renderer. Each tick reads a frame,
reduces it to mono, runs the selected spectral transform and renders the
result, then samples the metadata watcher for "now playing" changes. Ticks
are separated by a fixed delay. Cancellation is observed at the top of each
tick and during the delay; a read already in progress completes first.
Teardown closes the source and then the renderer, exactly once, on every
exit path.
*/
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"spectrograph/internal/audio"
	"spectrograph/internal/config"
	applog "spectrograph/internal/log"
	"spectrograph/internal/metadata"
	"spectrograph/internal/observe"
	"spectrograph/internal/render"
	"spectrograph/internal/spectral"

	"golang.org/x/sync/errgroup"
)

// ErrAlreadyRun is returned when Run is called on a used Controller.
var ErrAlreadyRun = errors.New("loop: controller already run")

// Config holds the values read once at startup.
type Config struct {
	Params        audio.Params
	Mode          string // config.ModeSpectrogram or config.ModeSpectrum
	SegmentLength int
	Window        spectral.WindowFunc
	Interval      time.Duration
	TickLimit     int // 0 for unbounded
}

// Watcher delivers metadata updates in order. *metadata.Poller implements
// it.
type Watcher interface {
	Run(ctx context.Context) error
	Updates() <-chan metadata.Update
}

// Option configures a Controller.
type Option func(*Controller)

// WithWatcher samples w for track changes on every tick.
func WithWatcher(w Watcher) Option {
	return func(c *Controller) {
		c.watcher = w
	}
}

// WithNotifier receives one notice per track change.
func WithNotifier(n render.Notifier) Option {
	return func(c *Controller) {
		c.notifier = n
	}
}

// WithMetrics records loop metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) {
		if m != nil {
			c.metrics = m
		}
	}
}

// overflowCounter is implemented by sources that tolerate input overflow.
type overflowCounter interface {
	Overflows() uint64
}

// Controller runs the loop. It is single use.
type Controller struct {
	cfg      Config
	source   audio.Source
	renderer render.Renderer
	watcher  Watcher
	notifier render.Notifier
	metrics  *observe.Metrics
	analyzer *spectral.Analyzer

	started   atomic.Bool
	state     atomic.Int32
	ticks     int
	lastTrack *metadata.Track
	overflows uint64
	mono      []float64

	teardownOnce sync.Once
	teardownErr  error
}

// New creates a Controller in the Idle state.
func New(cfg Config, source audio.Source, renderer render.Renderer, opts ...Option) (*Controller, error) {
	if source == nil || renderer == nil {
		return nil, errors.New("loop: source and renderer are required")
	}
	switch cfg.Mode {
	case config.ModeSpectrogram, config.ModeSpectrum:
	default:
		return nil, fmt.Errorf("loop: unknown mode %q", cfg.Mode)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("loop: negative interval %s", cfg.Interval)
	}

	analyzer, err := spectral.NewAnalyzer(cfg.SegmentLength, cfg.Window)
	if err != nil {
		return nil, fmt.Errorf("loop: %w", err)
	}

	c := &Controller{
		cfg:      cfg,
		source:   source,
		renderer: renderer,
		metrics:  observe.Discard(),
		analyzer: analyzer,
		mono:     make([]float64, 0, cfg.Params.FrameSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// State returns the current lifecycle stage.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Ticks returns the number of completed ticks. It is only meaningful after
// Run returns.
func (c *Controller) Ticks() int {
	return c.ticks
}

// Run opens the source and loops until ctx is cancelled, the tick limit is
// reached or a file source is drained, all of which return nil. A capture
// failure returns an error wrapping audio.ErrCaptureFailure; a dead display
// returns one wrapping render.ErrRenderFailure.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}
	defer c.teardown()

	if err := c.source.Open(ctx, c.cfg.Params); err != nil {
		return err
	}
	c.state.Store(int32(Running))
	applog.Infof("loop: listening for audio (%s, %.0f Hz, %d ch, %d frames)",
		c.cfg.Mode, c.cfg.Params.SampleRate, c.cfg.Params.Channels, c.cfg.Params.FrameSize)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var updates <-chan metadata.Update
	if c.watcher != nil {
		updates = c.watcher.Updates()
		g.Go(func() error {
			return c.watcher.Run(gctx)
		})
	}
	g.Go(func() error {
		// The watcher stops with the loop.
		defer cancel()
		return c.loop(gctx, updates)
	})

	return g.Wait()
}

func (c *Controller) loop(ctx context.Context, updates <-chan metadata.Update) error {
	var delay *time.Timer
	if c.cfg.Interval > 0 {
		delay = time.NewTimer(c.cfg.Interval)
		defer delay.Stop()
	}

	for {
		if ctx.Err() != nil {
			applog.Debugf("loop: cancelled after %d ticks", c.ticks)
			return nil
		}
		if c.cfg.TickLimit > 0 && c.ticks >= c.cfg.TickLimit {
			applog.Infof("loop: tick limit %d reached", c.cfg.TickLimit)
			return nil
		}

		if err := c.tick(ctx); err != nil {
			switch {
			case errors.Is(err, audio.ErrSourceDrained):
				applog.Infof("loop: source drained after %d ticks", c.ticks)
				return nil
			case errors.Is(err, render.ErrRenderFailure):
				return err
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
		}
		c.ticks++
		updates = c.drainUpdates(updates)

		if delay == nil {
			continue
		}
		delay.Reset(c.cfg.Interval)
		select {
		case <-ctx.Done():
		case <-delay.C:
		}
	}
}

// tick performs one capture → transform → render cycle.
func (c *Controller) tick(ctx context.Context) error {
	start := time.Now()

	frame, err := c.source.ReadFrame(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrSourceDrained) || errors.Is(err, audio.ErrCaptureFailure) {
			return err
		}
		return fmt.Errorf("%w: %w", audio.ErrCaptureFailure, err)
	}
	c.recordFrame(ctx, frame)

	c.mono = audio.ToMono(c.mono, frame.Samples, frame.Channels)

	if c.cfg.Mode == config.ModeSpectrum {
		err = c.renderLine(ctx, frame.SampleRate)
	} else {
		err = c.renderMatrix(ctx, frame.SampleRate)
	}
	if err != nil {
		if errors.Is(err, render.ErrRenderFailure) {
			return err
		}
		applog.Warnf("loop: render: %v", err)
	}

	c.metrics.TickDuration.Record(ctx, time.Since(start).Seconds())
	return nil
}

func (c *Controller) recordFrame(ctx context.Context, frame audio.Frame) {
	c.metrics.Frames.Add(ctx, 1)
	c.metrics.InputLevel.Record(ctx, audio.PeakLevel(frame.Samples))

	if oc, ok := c.source.(overflowCounter); ok {
		if n := oc.Overflows(); n > c.overflows {
			c.metrics.Overflows.Add(ctx, int64(n-c.overflows))
			applog.Debugf("loop: %d input overflow(s), samples lost", n-c.overflows)
			c.overflows = n
		}
	}
}

func (c *Controller) renderLine(ctx context.Context, sampleRate float64) error {
	start := time.Now()
	line, err := c.analyzer.Instantaneous(c.mono, sampleRate)
	c.metrics.RecordTransform(ctx, config.ModeSpectrum, time.Since(start).Seconds())

	if err == nil {
		err = line.Validate()
	}
	if err != nil {
		applog.Warnf("loop: substituting empty spectrum: %v", err)
		c.metrics.RenderFallbacks.Add(ctx, 1)
		line = spectral.Line{}
	}
	return c.renderer.RenderLine(line)
}

func (c *Controller) renderMatrix(ctx context.Context, sampleRate float64) error {
	start := time.Now()
	m, err := c.analyzer.Windowed(c.mono, sampleRate)
	c.metrics.RecordTransform(ctx, config.ModeSpectrogram, time.Since(start).Seconds())

	if err == nil {
		err = m.Validate()
	}
	if err != nil {
		applog.Warnf("loop: substituting empty spectrogram: %v", err)
		c.metrics.RenderFallbacks.Add(ctx, 1)
		m = spectral.Matrix{}
	}
	return c.renderer.RenderMatrix(m)
}

// drainUpdates consumes every pending update and emits one notice per
// change. It returns nil once the channel is closed.
func (c *Controller) drainUpdates(updates <-chan metadata.Update) <-chan metadata.Update {
	for updates != nil {
		select {
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			c.observeTrack(u.Track)
		default:
			return updates
		}
	}
	return nil
}

func (c *Controller) observeTrack(t *metadata.Track) {
	if t.Equal(c.lastTrack) {
		return
	}
	c.lastTrack = t
	c.metrics.TrackChanges.Add(context.Background(), 1)
	applog.Debugf("loop: now playing: %s", t.String())

	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(t); err != nil {
		applog.Warnf("loop: notice: %v", err)
	}
}

// teardown closes the source, then the renderer. It runs once.
func (c *Controller) teardown() {
	c.teardownOnce.Do(func() {
		c.state.Store(int32(Stopping))

		var errs []error
		if err := c.source.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source: %w", err))
		}
		if err := c.renderer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close renderer: %w", err))
		}
		c.teardownErr = errors.Join(errs...)

		c.state.Store(int32(Stopped))
		applog.Debugf("loop: stopped after %d ticks", c.ticks)
	})
}

// TeardownErr returns the errors raised while releasing the source and
// renderer, if any. It is only meaningful once Run has returned.
func (c *Controller) TeardownErr() error {
	return c.teardownErr
}
