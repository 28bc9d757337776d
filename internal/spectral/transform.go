// SPDX-License-Identifier: MIT
/*
Package spectral turns mono sample buffers into magnitude spectra.

Two transforms are provided. Windowed performs a short-time analysis with
50% overlapping segments and returns a time-frequency Matrix. Instantaneous
performs one DFT over the whole buffer and returns a Line of the
non-negative frequencies. Both return raw magnitudes; decibel scaling is
left to the renderer.

The package-level functions are pure and safe for concurrent use. Analyzer
caches FFT plans and window coefficients for a single goroutine's hot path
and produces identical results.
*/
package spectral

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidInput is returned for transform parameters that cannot
	// produce a spectrum.
	ErrInvalidInput = errors.New("invalid spectral input")

	// ErrMalformed is returned by Validate for data that cannot be drawn.
	ErrMalformed = errors.New("malformed spectral data")
)

// MinSegmentLength is the shortest segment Windowed accepts.
const MinSegmentLength = 2

// Windowed computes the short-time magnitude spectrum of mono.
func Windowed(mono []float64, sampleRate float64, segmentLength int, w WindowFunc) (Matrix, error) {
	a, err := NewAnalyzer(segmentLength, w)
	if err != nil {
		return Matrix{}, err
	}
	return a.Windowed(mono, sampleRate)
}

// Instantaneous computes the magnitude spectrum of the whole of mono.
func Instantaneous(mono []float64, sampleRate float64) (Line, error) {
	var a Analyzer
	return a.Instantaneous(mono, sampleRate)
}

// Analyzer holds reusable FFT plans, window coefficients and scratch
// buffers. It is not safe for concurrent use. Returned Matrix and Line
// values are owned by the caller.
type Analyzer struct {
	segmentLength int
	window        WindowFunc
	coeffs        []float64
	scale         float64 // 1 / Σ window

	segFFT  *fourier.FFT
	lineFFT *fourier.FFT

	padded   []float64
	segment  []float64
	spectrum []complex128
}

// NewAnalyzer prepares an analyzer for segments of segmentLength samples.
func NewAnalyzer(segmentLength int, w WindowFunc) (*Analyzer, error) {
	if segmentLength < MinSegmentLength {
		return nil, fmt.Errorf("%w: segment length %d is below %d", ErrInvalidInput, segmentLength, MinSegmentLength)
	}

	coeffs := windowCoefficients(segmentLength, w)
	sum := floats.Sum(coeffs)
	if sum == 0 {
		return nil, fmt.Errorf("%w: %s window of length %d sums to zero", ErrInvalidInput, w, segmentLength)
	}

	return &Analyzer{
		segmentLength: segmentLength,
		window:        w,
		coeffs:        coeffs,
		scale:         1 / sum,
		segFFT:        fourier.NewFFT(segmentLength),
		segment:       make([]float64, segmentLength),
	}, nil
}

// Layout returns the hop size, the number of frequency bins and the number
// of segments Windowed produces for n input samples.
func (a *Analyzer) Layout(n int) (hop, bins, segments int) {
	seg := a.segmentLength
	hop = seg - seg/2
	bins = seg/2 + 1

	if n < seg {
		n = seg
	}
	// Zero-extend half a segment at both ends, then pad the tail to a whole
	// number of hops.
	total := n + 2*(seg/2)
	if rem := (total - seg) % hop; rem != 0 {
		total += hop - rem
	}
	segments = (total-seg)/hop + 1
	return hop, bins, segments
}

// Windowed computes the short-time magnitude spectrum of mono. Input shorter
// than one segment is zero-padded, so a matrix is always produced.
func (a *Analyzer) Windowed(mono []float64, sampleRate float64) (Matrix, error) {
	if sampleRate <= 0 {
		return Matrix{}, fmt.Errorf("%w: sample rate %.1f", ErrInvalidInput, sampleRate)
	}

	seg := a.segmentLength
	hop, bins, segments := a.Layout(len(mono))
	total := (segments-1)*hop + seg

	if cap(a.padded) < total {
		a.padded = make([]float64, total)
	}
	a.padded = a.padded[:total]
	clear(a.padded)
	copy(a.padded[seg/2:], mono)

	if cap(a.spectrum) < bins {
		a.spectrum = make([]complex128, bins)
	}
	a.spectrum = a.spectrum[:bins]

	mags := mat.NewDense(bins, segments, nil)
	for j := range segments {
		start := j * hop
		floats.MulTo(a.segment, a.padded[start:start+seg], a.coeffs)
		a.segFFT.Coefficients(a.spectrum, a.segment)
		for k, c := range a.spectrum {
			mags.Set(k, j, cmplx.Abs(c)*a.scale)
		}
	}

	times := make([]float64, segments)
	for j := range times {
		times[j] = float64(j*hop) / sampleRate
	}
	freqs := make([]float64, bins)
	for k := range freqs {
		freqs[k] = a.segFFT.Freq(k) * sampleRate
	}

	return Matrix{Times: times, Freqs: freqs, Magnitudes: mags}, nil
}

// Instantaneous computes one DFT over all of mono and keeps the first
// ⌈N/2⌉ bins. Magnitudes are not normalised. Empty input yields an empty
// line.
func (a *Analyzer) Instantaneous(mono []float64, sampleRate float64) (Line, error) {
	if sampleRate <= 0 {
		return Line{}, fmt.Errorf("%w: sample rate %.1f", ErrInvalidInput, sampleRate)
	}
	n := len(mono)
	if n == 0 {
		return Line{Freqs: []float64{}, Magnitudes: []float64{}}, nil
	}

	if a.lineFFT == nil || a.lineFFT.Len() != n {
		a.lineFFT = fourier.NewFFT(n)
	}
	if cap(a.spectrum) < n/2+1 {
		a.spectrum = make([]complex128, n/2+1)
	}
	a.spectrum = a.spectrum[:n/2+1]
	a.lineFFT.Coefficients(a.spectrum, mono)

	bins := (n + 1) / 2
	line := Line{
		Freqs:      make([]float64, bins),
		Magnitudes: make([]float64, bins),
	}
	for k := range bins {
		line.Freqs[k] = float64(k) * sampleRate / float64(n)
		line.Magnitudes[k] = cmplx.Abs(a.spectrum[k])
	}
	return line, nil
}
