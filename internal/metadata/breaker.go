package metadata

import (
	"errors"
	"sync"
	"time"

	applog "spectrograph/internal/log"
)

// ErrCircuitOpen is returned by Breaker.Execute while polling is paused.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the operating mode of a Breaker.
type BreakerState int

const (
	// BreakerClosed forwards every call.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls until the reset timeout elapses.
	BreakerOpen
	// BreakerHalfOpen lets a single trial call through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a Breaker. Zero values take defaults.
type BreakerConfig struct {
	Name         string
	MaxFailures  int           // Consecutive failures before opening. Default 3.
	ResetTimeout time.Duration // Time spent open before a trial call. Default 30s.
}

// Breaker pauses a failing dependency: after MaxFailures consecutive
// failures it rejects calls for ResetTimeout, then allows one trial call
// whose outcome closes or re-opens it. A RateLimitError opens it at once,
// for at least the server's Retry-After.
type Breaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	pause       time.Duration
	trialActive bool
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		pause:        cfg.ResetTimeout,
		now:          time.Now,
	}
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.lastFailure) < b.pause {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
		applog.Debugf("metadata: breaker %s half-open, trying one call", b.name)
	case BreakerHalfOpen:
		if b.trialActive {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
	}
	trial := b.state == BreakerHalfOpen
	b.trialActive = trial
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false

	if err == nil {
		if trial {
			applog.Infof("metadata: breaker %s closed", b.name)
		}
		b.state = BreakerClosed
		b.failures = 0
		return nil
	}

	b.lastFailure = b.now()
	b.failures++

	pause := b.resetTimeout
	var limited *RateLimitError
	rateLimited := errors.As(err, &limited)
	if rateLimited && limited.RetryAfter > pause {
		pause = limited.RetryAfter
	}
	if trial || rateLimited || b.failures >= b.maxFailures {
		if b.state != BreakerOpen {
			applog.Warnf("metadata: breaker %s opened after %d consecutive failure(s), pausing for %s",
				b.name, b.failures, pause)
		}
		b.state = BreakerOpen
		b.pause = pause
	}
	return err
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports BreakerHalfOpen.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.pause {
		return BreakerHalfOpen
	}
	return b.state
}
