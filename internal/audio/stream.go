// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	applog "spectrograph/internal/log"

	"github.com/gordonklaus/portaudio"
)

// paStream is the subset of *portaudio.Stream used for blocking capture.
type paStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

var paOpenStream = func(p portaudio.StreamParameters, buf []int16) (paStream, error) {
	stream, err := portaudio.OpenStream(p, buf)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// PortAudioSource captures from a PortAudio input device with a blocking
// read stream. Input overflows are counted and otherwise ignored.
type PortAudioSource struct {
	deviceID   int
	lowLatency bool

	mu          sync.Mutex
	stream      paStream
	buf         []int16
	params      Params
	initialized bool

	overflows atomic.Uint64
}

// NewPortAudioSource returns a source for the device at deviceID, or the
// system default when deviceID is config.MinDeviceID.
func NewPortAudioSource(deviceID int, lowLatency bool) *PortAudioSource {
	return &PortAudioSource{
		deviceID:   deviceID,
		lowLatency: lowLatency,
	}
}

// Open initializes PortAudio, opens the input stream and starts it. Every
// failure is reported as ErrDeviceUnavailable and leaves the source closed.
func (s *PortAudioSource) Open(ctx context.Context, p Params) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		return fmt.Errorf("%w: stream already open", ErrDeviceUnavailable)
	}

	if err := Initialize(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	s.initialized = true

	stream, buf, err := s.openStream(p)
	if err != nil {
		s.terminate()
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	s.stream = stream
	s.buf = buf
	s.params = p
	return nil
}

func (s *PortAudioSource) openStream(p Params) (paStream, []int16, error) {
	device, err := InputDevice(s.deviceID)
	if err != nil {
		return nil, nil, err
	}
	if device.MaxInputChannels < p.Channels {
		return nil, nil, fmt.Errorf("device %q offers %d input channel(s), %d requested",
			device.Name, device.MaxInputChannels, p.Channels)
	}

	latency := device.DefaultHighInputLatency
	if s.lowLatency {
		latency = device.DefaultLowInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: p.Channels,
			Latency:  latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Device:   nil,
			Channels: 0, // Capture only
		},
		FramesPerBuffer: p.FrameSize,
		SampleRate:      p.SampleRate,
	}

	buf := make([]int16, p.BufferLen())
	stream, err := paOpenStream(params, buf)
	if err != nil {
		return nil, nil, err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, nil, err
	}

	applog.Infof("audio: capturing from %q at %.0f Hz, %d channel(s), %d frames per read, latency %s",
		device.Name, p.SampleRate, p.Channels, p.FrameSize, latency)

	return stream, buf, nil
}

// ReadFrame blocks until FrameSize samples per channel have been captured.
// The returned samples alias an internal buffer reused by the next call.
func (s *PortAudioSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		return Frame{}, fmt.Errorf("%w: stream is not open", ErrCaptureFailure)
	}

	if err := s.stream.Read(); err != nil {
		if !errors.Is(err, portaudio.InputOverflowed) {
			return Frame{}, fmt.Errorf("%w: %w", ErrCaptureFailure, err)
		}
		n := s.overflows.Add(1)
		applog.Debugf("audio: input overflowed, samples dropped (%d so far)", n)
	}

	return Frame{
		Samples:    s.buf,
		SampleRate: s.params.SampleRate,
		Channels:   s.params.Channels,
	}, nil
}

// Overflows returns the number of reads that reported lost input.
func (s *PortAudioSource) Overflows() uint64 {
	return s.overflows.Load()
}

// Close stops and closes the stream, then terminates PortAudio. A read in
// progress completes before the stream is stopped.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.stream != nil {
		if err := s.stream.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop stream: %w", err))
		}
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stream: %w", err))
		}
		s.stream = nil
	}
	if err := s.terminate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *PortAudioSource) terminate() error {
	if !s.initialized {
		return nil
	}
	s.initialized = false
	return Terminate()
}
