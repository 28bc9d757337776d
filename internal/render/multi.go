package render

import (
	"errors"

	"spectrograph/internal/spectral"
)

// Multi fans every call out to a list of renderers.
type Multi []Renderer

var _ Renderer = Multi(nil)

// RenderMatrix renders m on every renderer and joins their errors.
func (m Multi) RenderMatrix(mat spectral.Matrix) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RenderMatrix(mat))
	}
	return errors.Join(errs...)
}

// RenderLine renders l on every renderer and joins their errors.
func (m Multi) RenderLine(l spectral.Line) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.RenderLine(l))
	}
	return errors.Join(errs...)
}

// Close closes every renderer in reverse order, even after a failure.
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		errs = append(errs, m[i].Close())
	}
	return errors.Join(errs...)
}
