// Package resilience holds the fault-tolerance helpers used around the
// database source and the event publisher: a circuit breaker, retry with
// exponential backoff and a per-attempt timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

// State is the phase of a Breaker. The numeric values are exported as a
// gauge.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	return [...]string{"closed", "open", "half-open"}[s]
}

// BreakerConfig tunes a Breaker. Zero fields take defaults.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker.
	Failures int
	// Cooldown is how long the breaker stays open before one probe call is
	// let through.
	Cooldown time.Duration
	// OnStateChange, if set, is called after every transition.
	OnStateChange func(name string, from, to State)
}

// Breaker stops calling a dependency after repeated failures and probes it
// again once the cooldown has passed. Calls that fail only because the
// caller's context ended do not count as failures.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

// Do calls fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(ctx, err)
	return err
}

// State returns the current phase.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	switch b.state {
	case Open:
		wait := b.cfg.Cooldown - time.Since(b.openedAt)
		if wait > 0 {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w, retry in %s", b.name, ErrOpen, wait.Round(time.Millisecond))
		}
		b.probing = true
		b.transition(HalfOpen)
		return nil
	case HalfOpen:
		if b.probing {
			b.mu.Unlock()
			return fmt.Errorf("%s: %w, probe in flight", b.name, ErrOpen)
		}
		b.probing = true
	}
	b.mu.Unlock()
	return nil
}

func (b *Breaker) record(ctx context.Context, err error) {
	b.mu.Lock()
	b.probing = false
	switch {
	case err == nil:
		b.failures = 0
		if b.state != Closed {
			b.transition(Closed)
			return
		}
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		// The caller gave up; the dependency is not to blame.
	default:
		b.failures++
		if b.state == HalfOpen || b.failures >= b.cfg.Failures {
			b.openedAt = time.Now()
			if b.state != Open {
				b.logger.Warn("circuit opened", "consecutive_failures", b.failures, "error", err)
				b.transition(Open)
				return
			}
		}
	}
	b.mu.Unlock()
}

// transition changes state and unlocks b.mu before notifying.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	b.mu.Unlock()
	if to == Closed {
		b.logger.Info("circuit closed")
	}
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}
