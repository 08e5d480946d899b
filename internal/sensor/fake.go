package sensor

import (
	"errors"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// FakeClock is a manually advanced clock.
type FakeClock struct {
	T   time.Time
	Err error
}

// NewFakeClock returns a clock starting at t.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{T: t}
}

// Now returns the current fake time or Err.
func (c *FakeClock) Now() (time.Time, error) {
	if c.Err != nil {
		return time.Time{}, c.Err
	}
	return c.T, nil
}

// Advance moves the clock forward. It can be used as an injected sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}

// FakeEnvironment returns scripted readings.
type FakeEnvironment struct {
	// Readings contains scripted samples. Each call consumes the next one;
	// once exhausted the last is repeated.
	Readings []logic.Reading

	// Errors, if non-nil at the current index, is returned instead of the reading.
	Errors []error

	index int
	Calls int
}

// NewFakeEnvironment creates a FakeEnvironment with the given readings.
func NewFakeEnvironment(readings ...logic.Reading) *FakeEnvironment {
	return &FakeEnvironment{Readings: readings}
}

// Sample returns the next scripted reading.
func (f *FakeEnvironment) Sample() (logic.Reading, error) {
	i := f.index
	f.Calls++
	if f.index < len(f.Readings)-1 || f.index < len(f.Errors)-1 {
		f.index++
	}
	if i < len(f.Errors) && f.Errors[i] != nil {
		return logic.Reading{}, f.Errors[i]
	}
	if len(f.Readings) == 0 {
		return logic.Reading{}, errors.New("no readings configured")
	}
	if i >= len(f.Readings) {
		i = len(f.Readings) - 1
	}
	return f.Readings[i], nil
}

// FakeMeter returns per-pin scripted values and records every call.
type FakeMeter struct {
	// Values contains scripted values per sense pin, consumed in order; the
	// last value repeats.
	Values map[int][]float64

	// Errors, if set for a pin, is returned for every measurement of that pin.
	Errors map[int]error

	// Calls lists the sense pins measured, in order.
	Calls []int
}

// NewFakeMeter creates an empty FakeMeter.
func NewFakeMeter() *FakeMeter {
	return &FakeMeter{Values: make(map[int][]float64), Errors: make(map[int]error)}
}

// Measure returns the next value for the pin.
func (f *FakeMeter) Measure(pin int) (float64, error) {
	f.Calls = append(f.Calls, pin)
	if err := f.Errors[pin]; err != nil {
		return 0, err
	}
	vals := f.Values[pin]
	if len(vals) == 0 {
		return 0, nil
	}
	v := vals[0]
	if len(vals) > 1 {
		f.Values[pin] = vals[1:]
	}
	return v, nil
}
