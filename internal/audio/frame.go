// SPDX-License-Identifier: MIT
/*
Package audio acquires fixed-size frames of interleaved 16-bit samples.

A Source is opened with the layout the caller wants, read one frame at a
time from a single goroutine, and closed exactly once. PortAudioSource reads
from a capture device, FileSource replays a WAV, MP3 or Ogg Vorbis file and
ToneSource synthesises a sine for device-less runs.
*/
package audio

import (
	"context"
	"fmt"

	"spectrograph/internal/config"
)

// Params describes the layout requested from a Source.
type Params struct {
	SampleRate float64
	Channels   int
	FrameSize  int // Samples per channel delivered by each ReadFrame.
}

// BufferLen is the number of interleaved samples in one frame.
func (p Params) BufferLen() int {
	return p.FrameSize * p.Channels
}

func (p Params) validate() error {
	if p.Channels < 1 || p.Channels > config.MaxInputChannels {
		return fmt.Errorf("unsupported channel count %d", p.Channels)
	}
	if p.FrameSize <= 0 {
		return fmt.Errorf("frame size must be positive, got %d", p.FrameSize)
	}
	if p.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %.0f", p.SampleRate)
	}
	return nil
}

// Frame is one read worth of interleaved samples. Samples has length
// FrameSize × Channels and is only valid until the next ReadFrame call on the
// same source.
type Frame struct {
	Samples    []int16
	SampleRate float64
	Channels   int
}

// Len returns the number of samples per channel.
func (f Frame) Len() int {
	if f.Channels <= 0 {
		return 0
	}
	return len(f.Samples) / f.Channels
}

// Source is a blocking pull of sample frames.
type Source interface {
	// Open acquires the underlying stream.
	Open(ctx context.Context, p Params) error
	// ReadFrame blocks until a full frame is available.
	ReadFrame(ctx context.Context) (Frame, error)
	// Close releases the stream. It is safe to call more than once and after
	// a failed Open.
	Close() error
}
