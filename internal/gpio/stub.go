//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealConfig lists the pins to claim at startup.
type RealConfig struct {
	Chip      string
	Outputs   []int
	Inputs    []int
	Debounce  time.Duration
	ActiveLow bool
}

// RealIO is not available on non-Linux platforms.
type RealIO struct{}

// NewRealIO returns an error on non-Linux platforms.
func NewRealIO(RealConfig) (*RealIO, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetOutput is not implemented on non-Linux platforms.
func (r *RealIO) SetOutput(int, bool) error {
	return errors.New("gpio: not supported")
}

// ReadInput is not implemented on non-Linux platforms.
func (r *RealIO) ReadInput(int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// PollEdge is not implemented on non-Linux platforms.
func (r *RealIO) PollEdge(int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (r *RealIO) Close() error {
	return nil
}
