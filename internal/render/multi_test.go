package render

import (
	"errors"
	"testing"

	"spectrograph/internal/spectral"
)

// recorder is a Renderer that records calls into a shared log.
type recorder struct {
	name string
	log  *[]string
	err  error
}

func (r *recorder) RenderMatrix(spectral.Matrix) error {
	*r.log = append(*r.log, r.name+".matrix")
	return r.err
}

func (r *recorder) RenderLine(spectral.Line) error {
	*r.log = append(*r.log, r.name+".line")
	return r.err
}

func (r *recorder) Close() error {
	*r.log = append(*r.log, r.name+".close")
	return r.err
}

func TestMulti(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	m := Multi{
		&recorder{name: "a", log: &calls},
		&recorder{name: "b", log: &calls, err: boom},
	}

	if err := m.RenderLine(spectral.Line{}); !errors.Is(err, boom) {
		t.Errorf("RenderLine() error = %v, want boom", err)
	}
	if err := m.RenderMatrix(spectral.Matrix{}); !errors.Is(err, boom) {
		t.Errorf("RenderMatrix() error = %v, want boom", err)
	}
	if err := m.Close(); !errors.Is(err, boom) {
		t.Errorf("Close() error = %v, want boom", err)
	}

	want := []string{"a.line", "b.line", "a.matrix", "b.matrix", "b.close", "a.close"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestMultiNoErrors(t *testing.T) {
	var calls []string
	m := Multi{&recorder{name: "a", log: &calls}}
	if err := m.RenderLine(spectral.Line{}); err != nil {
		t.Errorf("RenderLine() error = %v", err)
	}
}
