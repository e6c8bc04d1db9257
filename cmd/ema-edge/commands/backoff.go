package commands

import "time"

// backoff doubles the wait after every failed attempt, up to max.
type backoff struct {
	initial time.Duration
	max     time.Duration
}

// delay returns the wait before the given attempt, counting from 1.
func (b backoff) delay(attempt int) time.Duration {
	if attempt < 1 || b.initial <= 0 {
		return b.initial
	}

	d := b.initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.max > 0 && d >= b.max {
			return b.max
		}
	}
	if b.max > 0 && d > b.max {
		return b.max
	}
	return d
}
