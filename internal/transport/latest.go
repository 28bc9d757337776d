package transport

import "sync"

// Latest keeps the most recent snapshot's magnitudes for consumers that
// sample on their own clock, such as the UDP publisher.
type Latest struct {
	mu   sync.Mutex
	mags []float64
	seq  uint64
}

var _ Transport = (*Latest)(nil)

// Send stores a copy of the snapshot's magnitudes.
func (l *Latest) Send(s Snapshot) error {
	l.mu.Lock()
	l.mags = append(l.mags[:0], s.Magnitudes...)
	l.seq = s.Seq
	l.mu.Unlock()
	return nil
}

// MagnitudesInto copies the latest magnitudes into dst, growing it when
// needed, and reports the sequence number they came from. seq is 0 before
// the first snapshot.
func (l *Latest) MagnitudesInto(dst []float64) ([]float64, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(dst[:0], l.mags...), l.seq
}

// Close is a no-op.
func (l *Latest) Close() error { return nil }
