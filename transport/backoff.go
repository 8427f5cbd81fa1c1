package transport

import (
	"math"
	"time"
)

const (
	defaultBackoffInitial = 750 * time.Millisecond
	defaultBackoffFactor  = 1.6
	defaultBackoffMax     = 10 * time.Second
)

// backoff computes exponential retry delays. The Nth delay is
// min(max, initial * factor^(N-1)); Reset returns the sequence to the start.
type backoff struct {
	initial time.Duration
	factor  float64
	max     time.Duration
	attempt int
}

func newBackoff(initial time.Duration, factor float64, max time.Duration) *backoff {
	if initial <= 0 {
		initial = defaultBackoffInitial
	}
	if factor < 1 {
		factor = defaultBackoffFactor
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	return &backoff{initial: initial, factor: factor, max: max}
}

// Next returns the delay for the next attempt and advances the sequence.
func (b *backoff) Next() time.Duration {
	d := time.Duration(float64(b.initial) * math.Pow(b.factor, float64(b.attempt)))
	if d > b.max {
		d = b.max
	}
	b.attempt++
	return d
}

// Reset returns the sequence to the initial delay.
func (b *backoff) Reset() {
	b.attempt = 0
}

// Attempt reports how many delays have been handed out since the last reset.
func (b *backoff) Attempt() int {
	return b.attempt
}
