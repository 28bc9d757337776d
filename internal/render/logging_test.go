package render

import (
	"bytes"
	"os"
	"strings"
	"testing"

	applog "spectrograph/internal/log"
	"spectrograph/internal/spectral"
)

func TestLoggingRenderer(t *testing.T) {
	var buf bytes.Buffer
	applog.SetOutput(&buf)
	t.Cleanup(func() { applog.SetOutput(os.Stderr) })

	r := NewLogging(2)
	line := testLine(16, 3, 1)
	for range 3 {
		if err := r.RenderLine(line); err != nil {
			t.Fatalf("RenderLine() error: %v", err)
		}
	}
	if err := r.RenderMatrix(spectral.Matrix{}); err != nil {
		t.Fatalf("RenderMatrix() error: %v", err)
	}

	if r.Renders() != 4 {
		t.Errorf("Renders() = %d, want 4", r.Renders())
	}
	if n := strings.Count(buf.String(), "render: spectrum"); n != 2 {
		t.Errorf("logged %d spectrum summaries, want 2 (every other render):\n%s", n, buf.String())
	}
	if strings.Contains(buf.String(), "render: spectrogram") {
		t.Error("fourth render should have been skipped")
	}
	if err := r.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}
