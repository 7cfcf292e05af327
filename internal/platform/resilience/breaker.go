package resilience

import (
	"sync"
	"time"

	crerr "github.com/cockroachdb/errors"
)

var ErrBreakerOpen = crerr.New("circuit breaker is open")

// State is the breaker's current mode.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// BreakerConfig tunes a Breaker. Zero values fall back to defaults.
type BreakerConfig struct {
	Enabled          bool
	FailureThreshold int
	OpenTimeout      time.Duration
	HalfOpenMaxReq   int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.FailureThreshold < 1 {
		c.FailureThreshold = 5
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 15 * time.Second
	}
	if c.HalfOpenMaxReq < 1 {
		c.HalfOpenMaxReq = 2
	}
	return c
}

// Breaker is a small stateful circuit breaker protecting a remote
// dependency. Consecutive failures trip it open; after OpenTimeout a
// bounded number of probe requests decide whether it closes again.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig
	now func() time.Time

	state         State
	failures      int
	openedAt      time.Time
	probeInFlight int
	probeOK       int
}

func NewBreaker(cfg BreakerConfig) *Breaker {
	return &Breaker{
		cfg:   cfg.withDefaults(),
		now:   time.Now,
		state: StateClosed,
	}
}

// Allow reports whether a request may proceed right now.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrBreakerOpen
		}
		b.state = StateHalfOpen
		b.probeInFlight = 0
		b.probeOK = 0
	}

	if b.state == StateHalfOpen {
		if b.probeInFlight >= b.cfg.HalfOpenMaxReq {
			return ErrBreakerOpen
		}
		b.probeInFlight++
	}

	return nil
}

// RecordSuccess reports a completed request that succeeded.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.probeInFlight > 0 {
			b.probeInFlight--
		}
		b.probeOK++
		if b.probeOK >= b.cfg.HalfOpenMaxReq && b.probeInFlight == 0 {
			b.state = StateClosed
			b.failures = 0
			b.openedAt = time.Time{}
		}
	}
}

// RecordFailure reports a completed request that failed.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case StateHalfOpen:
		if b.probeInFlight > 0 {
			b.probeInFlight--
		}
		b.trip()
	case StateOpen:
		b.openedAt = b.now()
	}
}

// State returns the breaker's effective state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cfg.OpenTimeout {
		return StateHalfOpen
	}
	return b.state
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probeInFlight = 0
	b.probeOK = 0
}
