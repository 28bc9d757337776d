package transport

import (
	"errors"
	"testing"
	"time"

	"spectrograph/internal/spectral"

	"gonum.org/v1/gonum/mat"
)

type captureTransport struct {
	snaps  []Snapshot
	err    error
	closed int
}

func (c *captureTransport) Send(s Snapshot) error {
	c.snaps = append(c.snaps, s)
	return c.err
}

func (c *captureTransport) Close() error {
	c.closed++
	return nil
}

func TestSink(t *testing.T) {
	a := &captureTransport{}
	boom := errors.New("boom")
	b := &captureTransport{err: boom}

	s := NewSink(a, b)
	fixed := time.Unix(1700000000, 0)
	s.now = func() time.Time { return fixed }

	line := spectral.Line{Freqs: []float64{0, 100, 200}, Magnitudes: []float64{0, 3, 1}}
	if err := s.RenderLine(line); !errors.Is(err, boom) {
		t.Errorf("RenderLine() error = %v, want boom", err)
	}

	m := spectral.Matrix{
		Times:      []float64{0, 1},
		Freqs:      []float64{0, 100},
		Magnitudes: mat.NewDense(2, 2, []float64{2, 4, 0, 0}),
	}
	_ = s.RenderMatrix(m)

	if len(a.snaps) != 2 || len(b.snaps) != 2 {
		t.Fatalf("snapshots = %d, %d, want 2 each", len(a.snaps), len(b.snaps))
	}

	first, second := a.snaps[0], a.snaps[1]
	if first.Seq != 1 || first.Kind != KindLine || first.PeakHz != 100 || !first.Time.Equal(fixed) {
		t.Errorf("line snapshot = %+v", first)
	}
	if len(first.Bands) != len(spectral.DefaultBands) {
		t.Errorf("bands = %d, want %d", len(first.Bands), len(spectral.DefaultBands))
	}
	if second.Seq != 2 || second.Kind != KindMatrix || second.Magnitudes[0] != 3 {
		t.Errorf("matrix snapshot = %+v, want averaged magnitudes", second)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if a.closed != 1 || b.closed != 1 {
		t.Errorf("closed = %d, %d, want 1 each", a.closed, b.closed)
	}
}

func TestLatest(t *testing.T) {
	var l Latest

	got, seq := l.MagnitudesInto(nil)
	if len(got) != 0 || seq != 0 {
		t.Errorf("empty Latest = (%v, %d)", got, seq)
	}

	mags := []float64{1, 2}
	_ = l.Send(Snapshot{Seq: 5, Magnitudes: mags})
	mags[0] = 99 // the stored copy is independent

	got, seq = l.MagnitudesInto(make([]float64, 0, 4))
	if seq != 5 || len(got) != 2 || got[0] != 1 {
		t.Errorf("MagnitudesInto() = (%v, %d), want ([1 2], 5)", got, seq)
	}
}
