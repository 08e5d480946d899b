// Package sequencer runs the rig's test procedures on top of the hardware
// interfaces: environmental gating, scheduled tests, the solar-noon
// calibration and the manual override run.
//
// A Sequencer is owned by the control loop goroutine. It is not safe for
// concurrent use.
package sequencer

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/eds-controller/internal/config"
	"github.com/sweeney/eds-controller/internal/gpio"
	"github.com/sweeney/eds-controller/internal/logic"
	"github.com/sweeney/eds-controller/internal/record"
	"github.com/sweeney/eds-controller/internal/sensor"
)

// Hardware bundles the boundaries a Sequencer drives.
type Hardware struct {
	IO    gpio.DigitalIO
	Meter sensor.Meter
	Env   sensor.Environment
	Clock sensor.Clock
	Sink  record.Sink

	// Sleep blocks for the given duration. Defaults to time.Sleep; tests
	// inject a fake clock's Advance.
	Sleep func(time.Duration)
}

// Sequencer executes test procedures for one rig.
type Sequencer struct {
	hw  Hardware
	rig *config.Rig

	blink bool // heartbeat LED phase
}

// New returns a Sequencer for rig.
func New(hw Hardware, rig *config.Rig) *Sequencer {
	if hw.Sleep == nil {
		hw.Sleep = time.Sleep
	}
	return &Sequencer{hw: hw, rig: rig}
}

// Rig returns the configuration the sequencer was built with.
func (s *Sequencer) Rig() *config.Rig { return s.rig }

// Begin asserts the power supply and the device relay.
func (s *Sequencer) Begin(dev logic.Device) error {
	if err := s.hw.IO.SetOutput(s.rig.PowerPin, true); err != nil {
		return fmt.Errorf("EDS%d: power on: %w", dev.ID, err)
	}
	if err := s.hw.IO.SetOutput(dev.RelayPin, true); err != nil {
		return fmt.Errorf("EDS%d: relay on: %w", dev.ID, err)
	}
	return nil
}

// End releases the device relay and the power supply. Both releases are
// attempted even if the first fails.
func (s *Sequencer) End(dev logic.Device) error {
	var errs []error
	if err := s.hw.IO.SetOutput(dev.RelayPin, false); err != nil {
		errs = append(errs, fmt.Errorf("EDS%d: relay off: %w", dev.ID, err))
	}
	if err := s.hw.IO.SetOutput(s.rig.PowerPin, false); err != nil {
		errs = append(errs, fmt.Errorf("EDS%d: power off: %w", dev.ID, err))
	}
	return errors.Join(errs...)
}

// Activate runs one full activation of dev: green LED solid, Begin, hold,
// End. Outputs are released on every path.
func (s *Sequencer) Activate(dev logic.Device, hold time.Duration) (err error) {
	s.setGreen(true)
	defer s.setGreen(false)
	defer func() {
		if rerr := s.End(dev); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	if err := s.Begin(dev); err != nil {
		return err
	}
	s.hw.Sleep(hold)
	return nil
}

// ReleaseAll drives the given pins low, continuing past failures.
func (s *Sequencer) ReleaseAll(pins []int) error {
	var errs []error
	for _, p := range pins {
		if err := s.hw.IO.SetOutput(p, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ToggleHeartbeat flips the green LED.
func (s *Sequencer) ToggleHeartbeat() {
	s.blink = !s.blink
	s.setGreen(s.blink)
}

// SetErrorLED drives the red LED.
func (s *Sequencer) SetErrorLED(on bool) {
	if s.rig.RedLEDPin == 0 {
		return
	}
	if err := s.hw.IO.SetOutput(s.rig.RedLEDPin, on); err != nil {
		log.Printf("sequencer: red led: %v", err)
	}
}

func (s *Sequencer) setGreen(on bool) {
	if s.rig.GreenLEDPin == 0 {
		return
	}
	if err := s.hw.IO.SetOutput(s.rig.GreenLEDPin, on); err != nil {
		log.Printf("sequencer: green led: %v", err)
	}
}

// now returns the clock time, falling back to the host clock so an event can
// still be stamped when the RTC is failing.
func (s *Sequencer) now() time.Time {
	t, err := s.hw.Clock.Now()
	if err != nil {
		return time.Now()
	}
	return t
}

// event logs msg and writes it to the sink.
func (s *Sequencer) event(ts time.Time, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Printf("sequencer: %s", msg)
	if err := s.hw.Sink.WriteEvent(ts, msg); err != nil {
		log.Printf("sequencer: write event: %v", err)
	}
}

// write stores a measurement. Sink failures are logged, never returned.
func (s *Sequencer) write(m logic.Measurement) {
	if err := s.hw.Sink.WriteMeasurement(m); err != nil {
		log.Printf("sequencer: write %s record for %s: %v", m.Kind, m.Subject, err)
	}
}

func (s *Sequencer) measure(subject logic.Subject, pin int) (float64, error) {
	v, err := s.hw.Meter.Measure(pin)
	if err != nil {
		return 0, fmt.Errorf("measure %s: %w", subject, err)
	}
	return v, nil
}
