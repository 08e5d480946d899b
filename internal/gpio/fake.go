package gpio

import "fmt"

// OutputChange is one recorded SetOutput call.
type OutputChange struct {
	Pin int
	On  bool
}

// FakeIO is a test double that records outputs and returns scripted inputs.
type FakeIO struct {
	// Outputs holds the current level of every pin that was set.
	Outputs map[int]bool

	// History contains every SetOutput call in order.
	History []OutputChange

	// Inputs holds the level returned by ReadInput per pin.
	Inputs map[int]bool

	// Edges contains scripted PollEdge results per pin.
	// Each call consumes the next value; exhausted scripts return false.
	Edges map[int][]bool

	// SetErrors, if set for a pin, is returned by SetOutput(pin, true).
	// Releasing a pin always succeeds so cleanup paths can be verified.
	SetErrors map[int]error

	// ReadError, if set, will be returned by ReadInput and PollEdge.
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeIO creates an empty FakeIO.
func NewFakeIO() *FakeIO {
	return &FakeIO{
		Outputs:   make(map[int]bool),
		Inputs:    make(map[int]bool),
		Edges:     make(map[int][]bool),
		SetErrors: make(map[int]error),
	}
}

// SetOutput records the new level.
func (f *FakeIO) SetOutput(pin int, on bool) error {
	if on {
		if err := f.SetErrors[pin]; err != nil {
			return fmt.Errorf("set pin %d: %w", pin, err)
		}
	}
	f.Outputs[pin] = on
	f.History = append(f.History, OutputChange{Pin: pin, On: on})
	return nil
}

// ReadInput returns the scripted level.
func (f *FakeIO) ReadInput(pin int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	return f.Inputs[pin], nil
}

// PollEdge returns the next scripted edge for the pin.
func (f *FakeIO) PollEdge(pin int) (bool, error) {
	if f.ReadError != nil {
		return false, f.ReadError
	}
	script := f.Edges[pin]
	if len(script) == 0 {
		return false, nil
	}
	f.Edges[pin] = script[1:]
	return script[0], nil
}

// Close releases every output and marks the fake as closed.
func (f *FakeIO) Close() error {
	for pin := range f.Outputs {
		f.Outputs[pin] = false
	}
	f.Closed = true
	return nil
}

// AnyAsserted reports whether any output is currently on.
func (f *FakeIO) AnyAsserted() bool {
	for _, on := range f.Outputs {
		if on {
			return true
		}
	}
	return false
}

// Asserted returns how many times pin was switched on.
func (f *FakeIO) Asserted(pin int) int {
	n := 0
	for _, c := range f.History {
		if c.Pin == pin && c.On {
			n++
		}
	}
	return n
}

// Reset clears recorded history and scripts.
func (f *FakeIO) Reset() {
	f.Outputs = make(map[int]bool)
	f.History = nil
	f.Inputs = make(map[int]bool)
	f.Edges = make(map[int][]bool)
	f.SetErrors = make(map[int]error)
	f.ReadError = nil
	f.Closed = false
}
