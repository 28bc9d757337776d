// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	applog "spectrograph/internal/log"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// pcmDecoder yields interleaved 16-bit samples in the file's own layout.
type pcmDecoder interface {
	SampleRate() int
	Channels() int
	// Read fills dst with interleaved samples and returns how many were
	// written. A zero count or io.EOF marks the end of the stream.
	Read(dst []int16) (int, error)
	// Rewind repositions the decoder at the first sample.
	Rewind() error
}

// fileDecoders maps lower-case file extensions to decoders.
var fileDecoders = map[string]func(io.ReadSeeker) (pcmDecoder, error){
	".wav": newWAVDecoder,
	".mp3": newMP3Decoder,
	".ogg": newOggDecoder,
	".oga": newOggDecoder,
}

// FileSource replays an audio file as if it were a capture device. Frames
// carry the file's sample rate and the channel layout requested at Open.
type FileSource struct {
	path string
	loop bool

	mu      sync.Mutex
	file    *os.File
	dec     pcmDecoder
	params  Params
	scratch []int16 // Native layout.
	buf     []int16 // Requested layout.
	drained bool
}

// NewFileSource returns a source reading path. With loop set, the file is
// rewound at its end instead of draining the source.
func NewFileSource(path string, loop bool) *FileSource {
	return &FileSource{path: path, loop: loop}
}

func (s *FileSource) Open(ctx context.Context, p Params) error {
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	newDecoder, ok := fileDecoders[strings.ToLower(filepath.Ext(s.path))]
	if !ok {
		return fmt.Errorf("%w: unsupported file type %q", ErrDeviceUnavailable, filepath.Ext(s.path))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return fmt.Errorf("%w: %s is already open", ErrDeviceUnavailable, s.path)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	dec, err := newDecoder(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: decode %s: %w", ErrDeviceUnavailable, s.path, err)
	}
	if dec.Channels() < 1 || dec.SampleRate() <= 0 {
		f.Close()
		return fmt.Errorf("%w: %s reports %d channel(s) at %d Hz",
			ErrDeviceUnavailable, s.path, dec.Channels(), dec.SampleRate())
	}

	if float64(dec.SampleRate()) != p.SampleRate {
		applog.Warnf("audio: %s is %d Hz, analysing at the file rate instead of %.0f Hz",
			filepath.Base(s.path), dec.SampleRate(), p.SampleRate)
	}
	p.SampleRate = float64(dec.SampleRate())

	s.file = f
	s.dec = dec
	s.params = p
	s.scratch = make([]int16, p.FrameSize*dec.Channels())
	s.buf = make([]int16, p.BufferLen())
	s.drained = false

	applog.Infof("audio: replaying %s, %d Hz, %d channel(s) as %d, loop=%v",
		filepath.Base(s.path), dec.SampleRate(), dec.Channels(), p.Channels, s.loop)
	return nil
}

// ReadFrame returns the next FrameSize samples per channel. A short final
// frame is zero-padded; the call after it returns ErrSourceDrained.
func (s *FileSource) ReadFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil {
		return Frame{}, fmt.Errorf("%w: file source is not open", ErrCaptureFailure)
	}
	if s.drained {
		return Frame{}, ErrSourceDrained
	}

	want := len(s.scratch)
	filled := 0
	rewound := false
	sinceRewind := 0
	for filled < want {
		n, err := s.dec.Read(s.scratch[filled:want])
		filled += n
		sinceRewind += n
		switch {
		case err != nil && !errors.Is(err, io.EOF):
			return Frame{}, fmt.Errorf("%w: %s: %w", ErrCaptureFailure, s.path, err)
		case n > 0 && err == nil:
			continue
		}

		// End of stream.
		if !s.loop || (rewound && sinceRewind == 0) {
			s.drained = true
			break
		}
		if err := s.dec.Rewind(); err != nil {
			return Frame{}, fmt.Errorf("%w: rewind %s: %w", ErrCaptureFailure, s.path, err)
		}
		applog.Debugf("audio: %s rewound", filepath.Base(s.path))
		rewound = true
		sinceRewind = 0
	}

	if filled == 0 {
		return Frame{}, ErrSourceDrained
	}
	clear(s.scratch[filled:])

	adaptChannels(s.buf, s.scratch, s.params.FrameSize, s.dec.Channels(), s.params.Channels)
	return Frame{
		Samples:    s.buf,
		SampleRate: s.params.SampleRate,
		Channels:   s.params.Channels,
	}, nil
}

func (s *FileSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dec = nil
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// adaptChannels converts frames of interleaved samples from one channel
// count to another. Down-mixing to mono averages all channels; up-mixing
// mono duplicates it; wider layouts keep their first channels.
func adaptChannels(dst, src []int16, frames, from, to int) {
	if from == to {
		copy(dst, src[:frames*from])
		return
	}
	for f := range frames {
		in := src[f*from : f*from+from]
		out := dst[f*to : f*to+to]
		switch {
		case to == 1:
			var sum int32
			for _, v := range in {
				sum += int32(v)
			}
			out[0] = int16(sum / int32(from))
		case from == 1:
			for c := range out {
				out[c] = in[0]
			}
		default:
			copy(out, in)
		}
	}
}

// --- WAV ---

type wavDecoder struct {
	dec   *wav.Decoder
	buf   *goaudio.IntBuffer
	depth int
}

func newWAVDecoder(r io.ReadSeeker) (pcmDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("not a valid WAV file")
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("unsupported WAV encoding %d, only integer PCM is read", dec.WavAudioFormat)
	}
	depth := int(dec.BitDepth)
	switch depth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("unsupported WAV bit depth %d", depth)
	}
	return &wavDecoder{
		dec:   dec,
		buf:   &goaudio.IntBuffer{},
		depth: depth,
	}, nil
}

func (d *wavDecoder) SampleRate() int { return int(d.dec.SampleRate) }
func (d *wavDecoder) Channels() int   { return int(d.dec.NumChans) }
func (d *wavDecoder) Rewind() error   { return d.dec.Rewind() }

func (d *wavDecoder) Read(dst []int16) (int, error) {
	if cap(d.buf.Data) < len(dst) {
		d.buf.Data = make([]int, len(dst))
	}
	d.buf.Data = d.buf.Data[:len(dst)]

	n, err := d.dec.PCMBuffer(d.buf)
	for i, v := range d.buf.Data[:n] {
		switch d.depth {
		case 8:
			dst[i] = int16((v - 128) << 8)
		case 16:
			dst[i] = int16(v)
		case 24:
			dst[i] = int16(v >> 8)
		case 32:
			dst[i] = int16(v >> 16)
		}
	}
	return n, err
}

// --- MP3 ---

type mp3Decoder struct {
	dec *gomp3.Decoder
	raw []byte
}

func newMP3Decoder(r io.ReadSeeker) (pcmDecoder, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Decoder{dec: dec}, nil
}

func (d *mp3Decoder) SampleRate() int { return d.dec.SampleRate() }

// Channels is always 2: go-mp3 emits 16-bit little-endian stereo.
func (d *mp3Decoder) Channels() int { return 2 }

func (d *mp3Decoder) Rewind() error {
	_, err := d.dec.Seek(0, io.SeekStart)
	return err
}

func (d *mp3Decoder) Read(dst []int16) (int, error) {
	need := len(dst) * 2
	if cap(d.raw) < need {
		d.raw = make([]byte, need)
	}
	d.raw = d.raw[:need]

	n, err := d.dec.Read(d.raw)
	samples := n / 2
	for i := range samples {
		dst[i] = int16(uint16(d.raw[2*i]) | uint16(d.raw[2*i+1])<<8)
	}
	return samples, err
}

// --- Ogg Vorbis ---

type oggDecoder struct {
	dec *oggvorbis.Reader
	raw []float32
}

func newOggDecoder(r io.ReadSeeker) (pcmDecoder, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &oggDecoder{dec: dec}, nil
}

func (d *oggDecoder) SampleRate() int { return d.dec.SampleRate() }
func (d *oggDecoder) Channels() int   { return d.dec.Channels() }
func (d *oggDecoder) Rewind() error   { return d.dec.SetPosition(0) }

func (d *oggDecoder) Read(dst []int16) (int, error) {
	if cap(d.raw) < len(dst) {
		d.raw = make([]float32, len(dst))
	}
	d.raw = d.raw[:len(dst)]

	n, err := d.dec.Read(d.raw)
	for i, v := range d.raw[:n] {
		dst[i] = int16(math.Max(-1, math.Min(1, float64(v))) * math.MaxInt16)
	}
	return n, err
}
