// SPDX-License-Identifier: MIT
package udp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	applog "spectrograph/internal/log"
)

/*
Packet layout, big-endian:

	| sequence uint32 | timestamp int64 (unix ns) | count uint16 | count × float32 magnitudes |
	|<---- 4 bytes -->|<------- 8 bytes --------->|<- 2 bytes -->|<------ count × 4 -------->|
*/
const (
	HeaderSize = 4 + 8 + 2

	// MaxMagnitudes keeps a packet inside one IPv4 UDP datagram.
	MaxMagnitudes = (65507 - HeaderSize) / 4

	// DefaultInterval is used when the configured interval is not positive.
	DefaultInterval = 16 * time.Millisecond
)

// ErrShortPacket is returned by ParsePacket for truncated input.
var ErrShortPacket = errors.New("udp: short packet")

// MagnitudeSource supplies the magnitudes to publish. seq is zero until
// data is available and changes whenever the data does.
type MagnitudeSource interface {
	MagnitudesInto(dst []float64) ([]float64, uint64)
}

// PacketSender is implemented by *Sender.
type PacketSender interface {
	Send(data []byte) error
}

// Publisher samples a MagnitudeSource on a fixed interval and sends each
// new spectrum as a packet.
type Publisher struct {
	sender   PacketSender
	source   MagnitudeSource
	interval time.Duration
	now      func() time.Time

	sequence uint32
	lastSeq  uint64
	mags     []float64
	packet   []byte

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPublisher creates a Publisher.
func NewPublisher(interval time.Duration, sender PacketSender, source MagnitudeSource) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp: magnitude source cannot be nil")
	}
	if interval <= 0 {
		applog.Warnf("udp: invalid interval %s, defaulting to %s", interval, DefaultInterval)
		interval = DefaultInterval
	}
	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Start launches the publishing goroutine. It stops when ctx ends or Stop
// is called. Calling Start while running is a no-op.
func (p *Publisher) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		applog.Warnf("udp: publisher already running")
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		applog.Debugf("udp: publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := p.publish(); err != nil {
					applog.Debugf("udp: %v", err)
				}
			}
		}
	}()
}

// publish sends the current spectrum if it changed since the last packet.
func (p *Publisher) publish() error {
	var seq uint64
	p.mags, seq = p.source.MagnitudesInto(p.mags)
	if seq == 0 || seq == p.lastSeq {
		return nil
	}
	p.lastSeq = seq
	p.sequence++

	p.packet = AppendPacket(p.packet[:0], p.sequence, p.now(), p.mags)
	if err := p.sender.Send(p.packet); err != nil {
		return fmt.Errorf("packet %d: %w", p.sequence, err)
	}
	return nil
}

// Stop ends the publishing goroutine and waits for it. It is safe to call
// more than once.
func (p *Publisher) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		p.wg.Wait()
	}
}

// Close implements io.Closer.
func (p *Publisher) Close() error {
	p.Stop()
	return nil
}

// AppendPacket encodes one packet onto dst. Magnitudes beyond MaxMagnitudes
// are not sent.
func AppendPacket(dst []byte, seq uint32, at time.Time, mags []float64) []byte {
	if len(mags) > MaxMagnitudes {
		mags = mags[:MaxMagnitudes]
	}
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(at.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(mags)))
	for _, v := range mags {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
	}
	return dst
}

// Packet is a decoded spectrum packet.
type Packet struct {
	Sequence   uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// ParsePacket decodes a packet produced by AppendPacket.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	n := int(binary.BigEndian.Uint16(b[12:14]))
	if len(b) < HeaderSize+4*n {
		return Packet{}, fmt.Errorf("%w: %d magnitudes in %d bytes", ErrShortPacket, n, len(b))
	}

	p := Packet{
		Sequence:   binary.BigEndian.Uint32(b[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(b[4:12]))),
		Magnitudes: make([]float32, n),
	}
	for i := range n {
		off := HeaderSize + 4*i
		p.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
	}
	return p, nil
}
