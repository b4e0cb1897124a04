package socketio

import (
	"math"
	"math/rand/v2"
	"time"
)

type backoff struct {
	min    time.Duration
	max    time.Duration
	jitter float64
	factor float64

	attempts int
}

func newBackoff(min, max time.Duration, jitter float64) *backoff {
	if min <= 0 {
		min = time.Second
	}
	if max < min {
		max = min
	}
	if jitter < 0 || jitter >= 1 {
		jitter = 0
	}
	return &backoff{min: min, max: max, jitter: jitter, factor: 2}
}

func (b *backoff) Duration() time.Duration {
	d := float64(b.min) * math.Pow(b.factor, float64(b.attempts))
	b.attempts++

	if b.jitter > 0 {
		deviation := rand.Float64() * b.jitter * d
		if rand.IntN(2) == 0 {
			d -= deviation
		} else {
			d += deviation
		}
	}

	if d > float64(b.max) || math.IsInf(d, 1) {
		return b.max
	}
	return time.Duration(d)
}

func (b *backoff) Attempts() int {
	return b.attempts
}

func (b *backoff) Reset() {
	b.attempts = 0
}
