package loop

import (
	"context"
	"sync"
	"sync/atomic"

	"spectrograph/internal/audio"
	"spectrograph/internal/metadata"
	"spectrograph/internal/spectral"
	"spectrograph/pkg/utils"
)

// eventLog records the order of calls across fakes.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// fakeSource serves sine frames. After frames reads it returns err; a
// negative frames count never fails.
type fakeSource struct {
	log      *eventLog
	openErr  error
	closeErr error
	frames   int
	err      error
	badRate  bool // frames report a zero sample rate

	// When block is set, every read announces itself on reading and waits
	// for block before returning.
	reading chan struct{}
	block   chan struct{}

	params    audio.Params
	reads     int
	closes    atomic.Int32
	overflows atomic.Uint64
}

func (s *fakeSource) Open(ctx context.Context, p audio.Params) error {
	s.log.add("source.open")
	s.params = p
	return s.openErr
}

func (s *fakeSource) ReadFrame(ctx context.Context) (audio.Frame, error) {
	if s.frames >= 0 && s.reads >= s.frames {
		return audio.Frame{}, s.err
	}
	s.reads++

	if s.block != nil {
		s.log.add("read.start")
		s.reading <- struct{}{}
		<-s.block
		s.log.add("read.end")
	}

	rate := s.params.SampleRate
	if s.badRate {
		rate = 0
	}
	samples := utils.GenerateSineWave16(s.params.FrameSize, s.params.SampleRate, 440)
	stereo := make([]int16, 0, len(samples)*s.params.Channels)
	for _, v := range samples {
		for range s.params.Channels {
			stereo = append(stereo, v)
		}
	}
	return audio.Frame{Samples: stereo, SampleRate: rate, Channels: s.params.Channels}, nil
}

func (s *fakeSource) Overflows() uint64 { return s.overflows.Load() }

func (s *fakeSource) Close() error {
	s.closes.Add(1)
	s.log.add("source.close")
	return s.closeErr
}

// fakeRenderer records what it was asked to draw.
type fakeRenderer struct {
	log      *eventLog
	err      error
	closeErr error
	lines    []spectral.Line
	matrices []spectral.Matrix
	closes   atomic.Int32
}

func (r *fakeRenderer) RenderLine(l spectral.Line) error {
	r.lines = append(r.lines, l)
	return r.err
}

func (r *fakeRenderer) RenderMatrix(m spectral.Matrix) error {
	r.matrices = append(r.matrices, m)
	return r.err
}

func (r *fakeRenderer) Close() error {
	r.closes.Add(1)
	r.log.add("renderer.close")
	return r.closeErr
}

// fakeWatcher replays a fixed list of updates, then waits for cancellation.
type fakeWatcher struct {
	updates chan metadata.Update
}

func newFakeWatcher(tracks ...*metadata.Track) *fakeWatcher {
	w := &fakeWatcher{updates: make(chan metadata.Update, len(tracks))}
	for _, t := range tracks {
		w.updates <- metadata.Update{Track: t}
	}
	return w
}

func (w *fakeWatcher) Run(ctx context.Context) error {
	<-ctx.Done()
	close(w.updates)
	return nil
}

func (w *fakeWatcher) Updates() <-chan metadata.Update { return w.updates }

// recordingNotifier collects notices.
type recordingNotifier struct {
	tracks []*metadata.Track
}

func (n *recordingNotifier) Notify(t *metadata.Track) error {
	n.tracks = append(n.tracks, t)
	return nil
}
