package clock

import "time"

// Clock abstracts time for the engines so paidAt stamps and movement
// ordering stay deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System returns the wall clock.
func System() Clock {
	return systemClock{}
}

// Fixed is a test clock that returns a settable instant.
type Fixed struct {
	Instant time.Time
}

// NewFixed builds a Fixed clock at the given instant.
func NewFixed(instant time.Time) *Fixed {
	return &Fixed{Instant: instant}
}

func (f *Fixed) Now() time.Time {
	return f.Instant
}

// Advance moves the fixed clock forward.
func (f *Fixed) Advance(d time.Duration) {
	f.Instant = f.Instant.Add(d)
}
