package verify

import (
	"math/rand"
	"time"
)

// Backoff defaults for verification retries.
const (
	// DefaultInitialBackoff is the delay after the first failed check.
	DefaultInitialBackoff = 500 * time.Millisecond

	// DefaultMaxBackoff caps the delay between checks.
	DefaultMaxBackoff = 4 * time.Second

	// DefaultBackoffMultiplier is the growth factor between checks.
	DefaultBackoffMultiplier = 2.0

	// DefaultJitterFactor is the maximum jitter as a fraction of the delay.
	DefaultJitterFactor = 0.25
)

// BackoffConfig customizes the retry delays.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// Backoff computes exponential delays with jitter. It is owned by a single
// Verify call and is not safe for concurrent use.
type Backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64
	attempts   int
	rng        *rand.Rand
}

// NewBackoff creates a backoff, filling zero fields with the defaults.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = DefaultMaxBackoff
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultBackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	delay := b.current
	if b.jitter > 0 {
		delay += time.Duration(float64(b.current) * b.jitter * b.rng.Float64())
	}

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Attempts returns how many delays have been handed out.
func (b *Backoff) Attempts() int {
	return b.attempts
}
