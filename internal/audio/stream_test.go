// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gordonklaus/portaudio"
)

type fakeStream struct {
	buf     []int16
	reads   []error // Returned in order by Read, then nil.
	nread   int
	started bool
	stopped int
	closed  int
	fill    int16
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Stop() error  { s.stopped++; return nil }
func (s *fakeStream) Close() error { s.closed++; return nil }

func (s *fakeStream) Read() error {
	for i := range s.buf {
		s.buf[i] = s.fill
	}
	var err error
	if s.nread < len(s.reads) {
		err = s.reads[s.nread]
	}
	s.nread++
	return err
}

// withFakePortAudio replaces every PortAudio entry point and returns the
// stream handed to the source plus the init/terminate counters.
func withFakePortAudio(t *testing.T, stream *fakeStream) (params *portaudio.StreamParameters, inits, terms *int) {
	t.Helper()
	withFakeDevices(t)

	origInit, origTerm, origOpen := paLibInitialize, paLibTerminate, paOpenStream
	t.Cleanup(func() {
		paLibInitialize, paLibTerminate, paOpenStream = origInit, origTerm, origOpen
	})

	inits, terms = new(int), new(int)
	params = new(portaudio.StreamParameters)
	paLibInitialize = func() error { *inits++; return nil }
	paLibTerminate = func() error { *terms++; return nil }
	paOpenStream = func(p portaudio.StreamParameters, buf []int16) (paStream, error) {
		*params = p
		stream.buf = buf
		return stream, nil
	}
	return params, inits, terms
}

var testParams = Params{SampleRate: 44100, Channels: 2, FrameSize: 1024}

func TestPortAudioSourceOpenReadClose(t *testing.T) {
	stream := &fakeStream{fill: 1000}
	params, inits, terms := withFakePortAudio(t, stream)

	src := NewPortAudioSource(-1, true)
	if err := src.Open(context.Background(), testParams); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if !stream.started {
		t.Error("stream was not started")
	}
	if params.FramesPerBuffer != 1024 || params.Input.Channels != 2 || params.SampleRate != 44100 {
		t.Errorf("unexpected stream parameters: %+v", params)
	}
	if params.Input.Latency != fakeDevices[0].DefaultLowInputLatency {
		t.Errorf("latency = %s, want low latency", params.Input.Latency)
	}

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if len(frame.Samples) != 2048 || frame.Len() != 1024 {
		t.Errorf("frame has %d samples (%d per channel), want 2048 (1024)", len(frame.Samples), frame.Len())
	}
	if frame.Samples[0] != 1000 || frame.Channels != 2 || frame.SampleRate != 44100 {
		t.Errorf("unexpected frame: channels=%d rate=%.0f first=%d", frame.Channels, frame.SampleRate, frame.Samples[0])
	}

	if err := src.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if stream.stopped != 1 || stream.closed != 1 {
		t.Errorf("stream stopped %d / closed %d times, want 1 / 1", stream.stopped, stream.closed)
	}
	if *inits != 1 || *terms != 1 {
		t.Errorf("PortAudio initialized %d / terminated %d times, want 1 / 1", *inits, *terms)
	}
}

func TestPortAudioSourceToleratesOverflow(t *testing.T) {
	stream := &fakeStream{reads: []error{portaudio.InputOverflowed, nil, portaudio.InputOverflowed}}
	withFakePortAudio(t, stream)

	src := NewPortAudioSource(-1, false)
	if err := src.Open(context.Background(), testParams); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	for i := range 4 {
		if _, err := src.ReadFrame(context.Background()); err != nil {
			t.Fatalf("ReadFrame() #%d error: %v", i, err)
		}
	}
	if src.Overflows() != 2 {
		t.Errorf("Overflows() = %d, want 2", src.Overflows())
	}
}

func TestPortAudioSourceCaptureFailure(t *testing.T) {
	stream := &fakeStream{reads: []error{fmt.Errorf("device unplugged")}}
	withFakePortAudio(t, stream)

	src := NewPortAudioSource(-1, false)
	if err := src.Open(context.Background(), testParams); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	_, err := src.ReadFrame(context.Background())
	if !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("ReadFrame() error = %v, want ErrCaptureFailure", err)
	}
}

func TestPortAudioSourceOpenFailures(t *testing.T) {
	tests := []struct {
		name   string
		device int
		params Params
		setup  func()
	}{
		{"output-only device", 1, testParams, nil},
		{"too many channels", 2, testParams, nil},
		{"bad params", -1, Params{SampleRate: 44100, Channels: 3, FrameSize: 1024}, nil},
		{"open stream error", -1, testParams, func() {
			paOpenStream = func(portaudio.StreamParameters, []int16) (paStream, error) {
				return nil, fmt.Errorf("busy")
			}
		}},
		{"init error", -1, testParams, func() {
			paLibInitialize = func() error { return fmt.Errorf("no host api") }
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, inits, terms := withFakePortAudio(t, &fakeStream{})
			if tt.setup != nil {
				tt.setup()
			}

			src := NewPortAudioSource(tt.device, false)
			err := src.Open(context.Background(), tt.params)
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Fatalf("Open() error = %v, want ErrDeviceUnavailable", err)
			}
			if *inits != *terms {
				t.Errorf("PortAudio initialized %d times but terminated %d", *inits, *terms)
			}
			if err := src.Close(); err != nil {
				t.Errorf("Close() after failed Open: %v", err)
			}
		})
	}
}

func TestPortAudioSourceReadAfterCancel(t *testing.T) {
	stream := &fakeStream{}
	withFakePortAudio(t, stream)

	src := NewPortAudioSource(-1, false)
	if err := src.Open(context.Background(), testParams); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadFrame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ReadFrame() error = %v, want context.Canceled", err)
	}
	if stream.nread != 0 {
		t.Errorf("stream read %d times after cancellation", stream.nread)
	}
}

func TestPortAudioSourceReadBeforeOpen(t *testing.T) {
	src := NewPortAudioSource(-1, false)
	if _, err := src.ReadFrame(context.Background()); !errors.Is(err, ErrCaptureFailure) {
		t.Errorf("ReadFrame() error = %v, want ErrCaptureFailure", err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() on unopened source: %v", err)
	}
}
