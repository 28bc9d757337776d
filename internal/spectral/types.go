package spectral

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Matrix is a time-frequency magnitude grid. Magnitudes has one row per
// frequency bin and one column per time bin; it is nil when there is no data.
type Matrix struct {
	Times      []float64
	Freqs      []float64
	Magnitudes *mat.Dense
}

// Empty reports whether the matrix holds no cells.
func (m Matrix) Empty() bool {
	return m.Magnitudes == nil || len(m.Freqs) == 0 || len(m.Times) == 0
}

// Dims returns the number of frequency and time bins.
func (m Matrix) Dims() (freqs, times int) {
	if m.Magnitudes == nil {
		return 0, 0
	}
	return m.Magnitudes.Dims()
}

// Max returns the largest magnitude, or 0 for an empty matrix.
func (m Matrix) Max() float64 {
	if m.Empty() {
		return 0
	}
	return mat.Max(m.Magnitudes)
}

// Average collapses the time axis, returning the mean magnitude per
// frequency bin.
func (m Matrix) Average() Line {
	if m.Empty() {
		return Line{}
	}
	rows, cols := m.Magnitudes.Dims()
	mags := make([]float64, rows)
	for r := range rows {
		mags[r] = floats.Sum(m.Magnitudes.RawRowView(r)) / float64(cols)
	}
	return Line{
		Freqs:      append([]float64(nil), m.Freqs...),
		Magnitudes: mags,
	}
}

// Validate checks the shape and values of the matrix.
func (m Matrix) Validate() error {
	if m.Empty() {
		return nil
	}
	rows, cols := m.Magnitudes.Dims()
	if rows != len(m.Freqs) || cols != len(m.Times) {
		return fmt.Errorf("%w: %d×%d magnitudes for %d freqs and %d times",
			ErrMalformed, rows, cols, len(m.Freqs), len(m.Times))
	}
	for r := range rows {
		if err := checkMagnitudes(m.Magnitudes.RawRowView(r)); err != nil {
			return err
		}
	}
	return nil
}

// Line is a single-frame spectrum. Freqs and Magnitudes are co-indexed.
type Line struct {
	Freqs      []float64
	Magnitudes []float64
}

// Len returns the number of bins.
func (l Line) Len() int {
	return len(l.Magnitudes)
}

// Max returns the largest magnitude, or 0 for an empty line.
func (l Line) Max() float64 {
	if len(l.Magnitudes) == 0 {
		return 0
	}
	return floats.Max(l.Magnitudes)
}

// Validate checks that the line is co-indexed and holds finite, non-negative
// magnitudes.
func (l Line) Validate() error {
	if len(l.Freqs) != len(l.Magnitudes) {
		return fmt.Errorf("%w: %d freqs for %d magnitudes", ErrMalformed, len(l.Freqs), len(l.Magnitudes))
	}
	return checkMagnitudes(l.Magnitudes)
}

func checkMagnitudes(mags []float64) error {
	for i, v := range mags {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: magnitude %d is %v", ErrMalformed, i, v)
		}
	}
	return nil
}
