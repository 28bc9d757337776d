package metadata

import (
	"context"
	"errors"
	"time"

	applog "spectrograph/internal/log"
)

const (
	// DefaultPollInterval is the delay between polls.
	DefaultPollInterval = 2 * time.Second
	// DefaultPollTimeout bounds a single poll.
	DefaultPollTimeout = 5 * time.Second
)

// Update is one successful probe result.
type Update struct {
	Track *Track
	At    time.Time
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithInterval sets the delay between polls.
func WithInterval(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each poll.
func WithTimeout(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBreaker pauses polling after repeated failures.
func WithBreaker(b *Breaker) PollerOption {
	return func(p *Poller) {
		p.breaker = b
	}
}

// WithObserver is called after every attempted poll with its duration and
// outcome. Polls rejected by the breaker are not observed.
func WithObserver(fn func(d time.Duration, err error)) PollerOption {
	return func(p *Poller) {
		p.observe = fn
	}
}

// Poller runs a Probe in the background and delivers successful results in
// order on Updates. Failed polls are logged and produce no update.
type Poller struct {
	probe    Probe
	interval time.Duration
	timeout  time.Duration
	breaker  *Breaker
	observe  func(time.Duration, error)
	updates  chan Update
}

// NewPoller creates a Poller for probe.
func NewPoller(probe Probe, opts ...PollerOption) *Poller {
	p := &Poller{
		probe:    probe,
		interval: DefaultPollInterval,
		timeout:  DefaultPollTimeout,
		updates:  make(chan Update, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = NewBreaker(BreakerConfig{Name: "metadata"})
	}
	return p
}

// Updates returns the channel of probe results. It is closed when Run
// returns.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// Run polls immediately and then every interval until ctx is cancelled. It
// always returns nil.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.updates)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if track, ok := p.pollOnce(ctx); ok {
			select {
			case p.updates <- Update{Track: track, At: time.Now()}:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// pollOnce runs one probe under the breaker and the per-poll timeout.
func (p *Poller) pollOnce(ctx context.Context) (*Track, bool) {
	var track *Track
	err := p.breaker.Execute(func() error {
		pctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		start := time.Now()
		var err error
		track, err = p.probe.Poll(pctx)
		if p.observe != nil {
			p.observe(time.Since(start), err)
		}
		return err
	})

	switch {
	case err == nil:
		return track, true
	case ctx.Err() != nil:
		return nil, false
	case errors.Is(err, ErrCircuitOpen):
		applog.Debugf("metadata: poll skipped, breaker open")
	default:
		applog.Warnf("metadata: %v", err)
	}
	return nil, false
}
