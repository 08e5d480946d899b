//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealConfig lists the pins to claim at startup.
type RealConfig struct {
	Chip      string
	Outputs   []int
	Inputs    []int
	Debounce  time.Duration // kernel debounce for edge detection on inputs
	ActiveLow bool          // relay boards that energise on a low level
}

// RealIO drives GPIO on actual hardware using Linux GPIO character device.
type RealIO struct {
	chip    *gpiocdev.Chip
	outputs map[int]*gpiocdev.Line
	inputs  map[int]*gpiocdev.Line
	edges   map[int]*atomic.Bool
}

// NewRealIO claims the configured lines. Outputs start released.
func NewRealIO(cfg RealConfig) (*RealIO, error) {
	name := cfg.Chip
	if name == "" {
		name = DefaultChip
	}
	chip, err := gpiocdev.NewChip(name)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	r := &RealIO{
		chip:    chip,
		outputs: make(map[int]*gpiocdev.Line),
		inputs:  make(map[int]*gpiocdev.Line),
		edges:   make(map[int]*atomic.Bool),
	}

	for _, pin := range cfg.Outputs {
		if _, dup := r.outputs[pin]; dup {
			continue
		}
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if cfg.ActiveLow {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request output pin %d: %w", pin, err)
		}
		r.outputs[pin] = line
	}

	for _, pin := range cfg.Inputs {
		if _, dup := r.inputs[pin]; dup {
			continue
		}
		latch := &atomic.Bool{}
		opts := []gpiocdev.LineReqOption{
			gpiocdev.AsInput,
			gpiocdev.WithPullDown,
			gpiocdev.WithBothEdges,
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				latch.Store(true)
			}),
		}
		if cfg.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(cfg.Debounce))
		}
		line, err := chip.RequestLine(pin, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request input pin %d: %w", pin, err)
		}
		r.inputs[pin] = line
		r.edges[pin] = latch
	}

	return r, nil
}

// SetOutput sets the logical level of an output pin.
func (r *RealIO) SetOutput(pin int, on bool) error {
	line, ok := r.outputs[pin]
	if !ok {
		return fmt.Errorf("pin %d not configured as output", pin)
	}
	v := 0
	if on {
		v = 1
	}
	if err := line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", pin, err)
	}
	return nil
}

// ReadInput returns the logical level of an input pin.
func (r *RealIO) ReadInput(pin int) (bool, error) {
	line, ok := r.inputs[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not configured as input", pin)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 1, nil
}

// PollEdge reports and clears the edge latch for an input pin.
func (r *RealIO) PollEdge(pin int) (bool, error) {
	latch, ok := r.edges[pin]
	if !ok {
		return false, fmt.Errorf("pin %d not configured as input", pin)
	}
	return latch.Swap(false), nil
}

// Close releases GPIO resources.
// Outputs are driven low and every line is reconfigured to input with
// pull-down (matching Pi boot defaults) before closing, so no relay stays
// energised after the process exits.
func (r *RealIO) Close() error {
	var errs []error

	for pin, line := range r.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("release pin %d: %w", pin, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	for pin, line := range r.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}
