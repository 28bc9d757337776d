// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// writeTestWAV encodes samples as a 16-bit PCM WAV file in a temp dir.
func writeTestWAV(t *testing.T, sampleRate, channels int, samples []int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize fixture: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close fixture: %v", err)
	}
	return path
}

func ramp(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func TestFileSourceMonoToStereo(t *testing.T) {
	path := writeTestWAV(t, 22050, 1, ramp(8))

	src := NewFileSource(path, false)
	err := src.Open(context.Background(), Params{SampleRate: 44100, Channels: 2, FrameSize: 4})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	if frame.SampleRate != 22050 {
		t.Errorf("SampleRate = %.0f, want the file rate 22050", frame.SampleRate)
	}
	want := []int16{1, 1, 2, 2, 3, 3, 4, 4}
	for i, v := range want {
		if frame.Samples[i] != v {
			t.Fatalf("Samples = %v, want %v", frame.Samples, want)
		}
	}
}

func TestFileSourceStereoToMono(t *testing.T) {
	path := writeTestWAV(t, 44100, 2, []int{100, 300, -50, -150, 0, 10})

	src := NewFileSource(path, false)
	if err := src.Open(context.Background(), Params{SampleRate: 44100, Channels: 1, FrameSize: 3}); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	want := []int16{200, -100, 5}
	for i, v := range want {
		if frame.Samples[i] != v {
			t.Fatalf("Samples = %v, want %v", frame.Samples, want)
		}
	}
}

func TestFileSourceDrains(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, ramp(6))

	src := NewFileSource(path, false)
	if err := src.Open(context.Background(), Params{SampleRate: 44100, Channels: 1, FrameSize: 4}); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	if _, err := src.ReadFrame(context.Background()); err != nil {
		t.Fatalf("first ReadFrame() error: %v", err)
	}

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("second ReadFrame() error: %v", err)
	}
	want := []int16{5, 6, 0, 0} // Zero-padded tail.
	for i, v := range want {
		if frame.Samples[i] != v {
			t.Fatalf("Samples = %v, want %v", frame.Samples, want)
		}
	}

	if _, err := src.ReadFrame(context.Background()); !errors.Is(err, ErrSourceDrained) {
		t.Errorf("third ReadFrame() error = %v, want ErrSourceDrained", err)
	}
}

func TestFileSourceLoops(t *testing.T) {
	path := writeTestWAV(t, 44100, 1, ramp(3))

	src := NewFileSource(path, true)
	if err := src.Open(context.Background(), Params{SampleRate: 44100, Channels: 1, FrameSize: 4}); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	frame, err := src.ReadFrame(context.Background())
	if err != nil {
		t.Fatalf("ReadFrame() error: %v", err)
	}
	want := []int16{1, 2, 3, 1}
	for i, v := range want {
		if frame.Samples[i] != v {
			t.Fatalf("Samples = %v, want %v", frame.Samples, want)
		}
	}
}

// silentDecoder reports end of stream on every read.
type silentDecoder struct{ rewinds int }

func (d *silentDecoder) SampleRate() int           { return 44100 }
func (d *silentDecoder) Channels() int             { return 1 }
func (d *silentDecoder) Read([]int16) (int, error) { return 0, io.EOF }
func (d *silentDecoder) Rewind() error             { d.rewinds++; return nil }

func TestFileSourceLoopingEmptyStreamDrains(t *testing.T) {
	fileDecoders[".silent"] = func(io.ReadSeeker) (pcmDecoder, error) {
		return &silentDecoder{}, nil
	}
	defer delete(fileDecoders, ".silent")

	path := filepath.Join(t.TempDir(), "empty.silent")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	src := NewFileSource(path, true)
	if err := src.Open(context.Background(), Params{SampleRate: 44100, Channels: 1, FrameSize: 4}); err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer src.Close()

	if _, err := src.ReadFrame(context.Background()); !errors.Is(err, ErrSourceDrained) {
		t.Errorf("ReadFrame() error = %v, want ErrSourceDrained", err)
	}
	if n := src.dec.(*silentDecoder).rewinds; n != 1 {
		t.Errorf("decoder rewound %d times, want 1", n)
	}
}

func TestFileSourceOpenErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("definitely not audio"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.wav")},
		{"unsupported extension", garbage("notes.txt")},
		{"corrupt wav", garbage("bad.wav")},
		{"corrupt mp3", garbage("bad.mp3")},
		{"corrupt ogg", garbage("bad.ogg")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := NewFileSource(tt.path, false)
			err := src.Open(context.Background(), testParams)
			if !errors.Is(err, ErrDeviceUnavailable) {
				t.Errorf("Open() error = %v, want ErrDeviceUnavailable", err)
			}
			if err := src.Close(); err != nil {
				t.Errorf("Close() after failed Open: %v", err)
			}
		})
	}
}

func TestAdaptChannels(t *testing.T) {
	tests := []struct {
		name     string
		src      []int16
		from, to int
		want     []int16
	}{
		{"same layout", []int16{1, 2, 3, 4}, 2, 2, []int16{1, 2, 3, 4}},
		{"mono up", []int16{7, -7}, 1, 2, []int16{7, 7, -7, -7}},
		{"stereo down", []int16{10, 20, -4, 0}, 2, 1, []int16{15, -2}},
		{"quad to stereo", []int16{1, 2, 3, 4, 5, 6, 7, 8}, 4, 2, []int16{1, 2, 5, 6}},
		{"quad to mono", []int16{4, 4, 8, 8}, 4, 1, []int16{6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := len(tt.src) / tt.from
			dst := make([]int16, frames*tt.to)
			adaptChannels(dst, tt.src, frames, tt.from, tt.to)
			for i := range tt.want {
				if dst[i] != tt.want[i] {
					t.Fatalf("adaptChannels() = %v, want %v", dst, tt.want)
				}
			}
		})
	}
}
