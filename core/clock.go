package core

import "time"

// Clock supplies the current time. Expiry checks go through it so tests can
// move time deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
