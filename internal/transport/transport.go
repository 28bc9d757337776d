// SPDX-License-Identifier: MIT
/*
Package transport publishes rendered spectra to network clients.

A Sink adapts any number of Transports to the render.Renderer interface so
network delivery runs in the same per-tick pipeline as the display. Each
render becomes a Snapshot; a spectrogram is sent as its time-averaged line.
*/
package transport

import (
	"errors"
	"time"

	"spectrograph/internal/render"
	"spectrograph/internal/spectral"
)

// Transport delivers snapshots. Implementations must be safe for use from
// the render goroutine while their own goroutines run.
type Transport interface {
	Send(s Snapshot) error
	Close() error
}

// Snapshot is the wire form of one rendered spectrum.
type Snapshot struct {
	Seq        uint64                `json:"seq"`
	Time       time.Time             `json:"time"`
	Kind       string                `json:"kind"` // "line" or "matrix"
	Freqs      []float64             `json:"freqs"`
	Magnitudes []float64             `json:"magnitudes"`
	PeakHz     float64               `json:"peakHz"`
	Bands      []spectral.BandEnergy `json:"bands"`
}

// Snapshot kinds.
const (
	KindLine   = "line"
	KindMatrix = "matrix"
)

// Sink is a render.Renderer that forwards every render to its transports.
type Sink struct {
	transports []Transport
	seq        uint64
	now        func() time.Time
}

var _ render.Renderer = (*Sink)(nil)

// NewSink creates a Sink over ts.
func NewSink(ts ...Transport) *Sink {
	return &Sink{transports: ts, now: time.Now}
}

// RenderLine sends l.
func (s *Sink) RenderLine(l spectral.Line) error {
	return s.send(KindLine, l)
}

// RenderMatrix sends the time-averaged spectrum of m.
func (s *Sink) RenderMatrix(m spectral.Matrix) error {
	return s.send(KindMatrix, m.Average())
}

func (s *Sink) send(kind string, l spectral.Line) error {
	s.seq++
	snap := Snapshot{
		Seq:        s.seq,
		Time:       s.now(),
		Kind:       kind,
		Freqs:      l.Freqs,
		Magnitudes: l.Magnitudes,
		PeakHz:     spectral.PeakFrequency(l),
		Bands:      spectral.Bands(l),
	}

	var errs []error
	for _, t := range s.transports {
		errs = append(errs, t.Send(snap))
	}
	return errors.Join(errs...)
}

// Close closes every transport.
func (s *Sink) Close() error {
	var errs []error
	for _, t := range s.transports {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
