// Package resilience provides the circuit breaker that protects a voice
// session from hammering a failing external service.
//
// The breaker is the classic three-state machine (closed → open → half-open).
// Its main consumer is the session controller, which wraps speech synthesis
// calls in a breaker so that a dead synthesis backend degrades read-aloud to
// an "unavailable" notice instead of stalling every read-card command on a
// doomed network call.
//
// All methods are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Execute] while the breaker is open and the
// cooldown has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

// State is a breaker's operating mode.
type State int

const (
	// Closed is the normal mode: calls pass through.
	Closed State = iota

	// Open means the failure threshold was hit; calls are rejected with
	// [ErrOpen] until the cooldown elapses.
	Open

	// HalfOpen is the probe mode after cooldown: a limited number of calls
	// pass through to test whether the service has recovered.
	HalfOpen
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds the tuning knobs for a [Breaker]. Zero values select the
// defaults noted on each field.
type Config struct {
	// Name labels the breaker in log output.
	Name string

	// FailureThreshold is the number of consecutive failures that opens the
	// breaker. Default: 3.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before probing. Default: 30s.
	Cooldown time.Duration

	// ProbeQuota is how many successful probe calls close a half-open
	// breaker. Default: 2.
	ProbeQuota int
}

// Breaker implements the three-state circuit breaker.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration
	quota     int

	mu        sync.Mutex
	state     State
	failures  int
	probing   int // probe calls currently in flight
	successes int // successful probes this half-open cycle
	openedAt  time.Time
}

// New creates a [Breaker] from cfg, filling in defaults for zero fields.
func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeQuota <= 0 {
		cfg.ProbeQuota = 2
	}
	return &Breaker{
		name:      cfg.Name,
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		quota:     cfg.ProbeQuota,
	}
}

// Execute runs fn unless the breaker rejects the call. While open it returns
// [ErrOpen] without invoking fn; in half-open mode at most one probe runs at
// a time.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.onFailure()
	} else {
		b.onSuccess()
	}
	return err
}

// admit decides whether a call may proceed, transitioning open → half-open
// after the cooldown.
func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = HalfOpen
		b.probing = 0
		b.successes = 0
		slog.Info("circuit breaker probing", "name", b.name)
	case HalfOpen:
		// One probe at a time keeps a flapping service from absorbing a
		// burst of queued calls.
		if b.probing > 0 {
			return ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.probing++
	}
	return nil
}

// onFailure updates failure accounting. Caller holds b.mu.
func (b *Breaker) onFailure() {
	if b.state == HalfOpen {
		b.state = Open
		b.openedAt = time.Now()
		b.failures = b.threshold
		slog.Warn("circuit breaker re-opened", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.threshold {
		b.state = Open
		b.openedAt = time.Now()
		slog.Warn("circuit breaker opened",
			"name", b.name, "consecutive_failures", b.failures)
	}
}

// onSuccess updates success accounting. Caller holds b.mu.
func (b *Breaker) onSuccess() {
	if b.state == HalfOpen {
		b.probing--
		b.successes++
		if b.successes >= b.quota {
			b.state = Closed
			b.failures = 0
			slog.Info("circuit breaker closed", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State returns the breaker's current state. An open breaker whose cooldown
// has elapsed reports half-open; the actual transition happens on the next
// Execute.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to closed and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probing = 0
	b.successes = 0
}
