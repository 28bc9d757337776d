package audio

import (
	"context"
	"fmt"
	"sync"

	"spectrograph/pkg/utils"
)

// toneAmplitude keeps the synthetic signal below full scale.
const toneAmplitude = 0.5

// ToneSource synthesises a continuous sine, for runs without a capture device.
type ToneSource struct {
	frequency float64

	mu     sync.Mutex
	osc    *utils.SineOscillator
	buf    []int16
	params Params
}

// NewToneSource returns a source producing a sine at frequency Hz.
func NewToneSource(frequency float64) *ToneSource {
	return &ToneSource{frequency: frequency}
}

func (s *ToneSource) Open(ctx context.Context, p Params) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if s.frequency <= 0 || s.frequency >= p.SampleRate/2 {
		return fmt.Errorf("%w: tone frequency %.1f Hz outside (0, %.1f)",
			ErrDeviceUnavailable, s.frequency, p.SampleRate/2)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.osc = utils.NewSineOscillator(p.SampleRate, s.frequency, toneAmplitude)
	s.buf = make([]int16, p.BufferLen())
	s.params = p
	return nil
}

func (s *ToneSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.osc == nil {
		return Frame{}, fmt.Errorf("%w: tone source is not open", ErrCaptureFailure)
	}

	s.osc.Fill(s.buf, s.params.Channels)
	return Frame{
		Samples:    s.buf,
		SampleRate: s.params.SampleRate,
		Channels:   s.params.Channels,
	}, nil
}

func (s *ToneSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.osc = nil
	return nil
}
