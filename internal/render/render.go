// SPDX-License-Identifier: MIT
/*
Package render pushes spectral data to a live display surface.

A Renderer owns its display state: the axes, the vertical scale and the
persistent line handle. Renderers are driven from a single goroutine and
are not safe for concurrent use.
*/
package render

import (
	"errors"
	"math"

	"spectrograph/internal/metadata"
	"spectrograph/internal/spectral"
)

// ErrRenderFailure reports that the display surface itself can no longer be
// drawn to. Malformed spectral data is not a render failure.
var ErrRenderFailure = errors.New("render failure")

// MinVerticalLimit is the vertical scale used for a spectrum with no energy.
const MinVerticalLimit = 1e-9

// Renderer draws spectra.
type Renderer interface {
	// RenderMatrix clears the surface and draws m as a heat map.
	RenderMatrix(m spectral.Matrix) error
	// RenderLine updates the persistent spectrum curve in place.
	RenderLine(l spectral.Line) error
	// Close tears the surface down.
	Close() error
}

// Notifier receives "now playing" changes. A nil track means nothing is
// playing.
type Notifier interface {
	Notify(t *metadata.Track) error
}

// VerticalLimit returns the upper bound of the vertical axis for mags:
// 10% headroom above the largest value, never below MinVerticalLimit.
func VerticalLimit(mags []float64) float64 {
	peak := 0.0
	for _, v := range mags {
		if v > peak && !math.IsInf(v, 1) {
			peak = v
		}
	}
	if limit := 1.1 * peak; limit > MinVerticalLimit {
		return limit
	}
	return MinVerticalLimit
}
