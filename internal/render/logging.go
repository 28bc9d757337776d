package render

import (
	applog "spectrograph/internal/log"
	"spectrograph/internal/spectral"
)

// Logging is a headless Renderer that logs a summary of every n-th render.
type Logging struct {
	every   int
	renders int
}

var _ Renderer = (*Logging)(nil)

// NewLogging creates a Logging renderer. every < 1 logs every render.
func NewLogging(every int) *Logging {
	if every < 1 {
		every = 1
	}
	applog.Infof("render: using logging renderer (every %d ticks)", every)
	return &Logging{every: every}
}

func (r *Logging) due() bool {
	r.renders++
	return (r.renders-1)%r.every == 0
}

// RenderMatrix logs the shape and peak of m.
func (r *Logging) RenderMatrix(m spectral.Matrix) error {
	if !r.due() {
		return nil
	}
	freqs, times := m.Dims()
	applog.Infof("render: spectrogram %d×%d, max %.4g, %s", freqs, times, m.Max(), summarize(m.Average()))
	return nil
}

// RenderLine logs the peak and band energies of l.
func (r *Logging) RenderLine(l spectral.Line) error {
	if !r.due() {
		return nil
	}
	applog.Infof("render: spectrum %d bins, limit %.4g, %s", l.Len(), VerticalLimit(l.Magnitudes), summarize(l))
	return nil
}

// Renders returns the number of render calls received.
func (r *Logging) Renders() int {
	return r.renders
}

// Close is a no-op.
func (r *Logging) Close() error {
	applog.Debugf("render: logging renderer closed after %d renders", r.renders)
	return nil
}
