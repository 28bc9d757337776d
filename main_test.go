package main

import (
	"testing"
	"time"

	"spectrograph/internal/config"
	"spectrograph/internal/spectral"
)

func TestLoopConfig(t *testing.T) {
	tests := []struct {
		name      string
		tickLimit int
		want      int
	}{
		{"bounded", 25, 25},
		{"unbounded", 0, 0},
		{"negative is unbounded", -3, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Loop.TickLimit = tt.tickLimit
			cfg.Loop.Interval = 10 * time.Millisecond

			lc := loopConfig(&cfg, spectral.Hamming)
			if lc.TickLimit != tt.want {
				t.Errorf("TickLimit = %d, want %d", lc.TickLimit, tt.want)
			}
			if lc.Interval != 10*time.Millisecond || lc.Window != spectral.Hamming {
				t.Errorf("loop settings not carried over: %+v", lc)
			}
			if lc.Params.FrameSize != cfg.Audio.FramesPerBuffer || lc.SegmentLength != cfg.Analysis.SegmentLength {
				t.Errorf("analysis settings not carried over: %+v", lc)
			}
		})
	}
}
