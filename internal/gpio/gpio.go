// Package gpio provides digital I/O with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// DigitalIO drives relay/LED outputs and reads switch inputs.
type DigitalIO interface {
	// SetOutput asserts (true) or releases (false) an output pin.
	SetOutput(pin int, on bool) error

	// ReadInput returns the logical level of an input pin.
	ReadInput(pin int) (bool, error)

	// PollEdge reports whether an edge was detected on an input pin since
	// the last call. The latch is cleared on read. Both edges latch: a
	// falling edge is how a running manual override sees the switch go off,
	// and callers read the level to tell the two apart.
	PollEdge(pin int) (bool, error)

	// Close releases all outputs and GPIO resources.
	Close() error
}

// DefaultChip is the Raspberry Pi header GPIO chip.
const DefaultChip = "gpiochip0"
