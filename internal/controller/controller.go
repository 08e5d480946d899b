// Package controller is the rig's main control loop. Each iteration resets
// the cycle state, releases every activation output, reads the clock and the
// environment, runs the solar-noon calibration and any due scheduled tests,
// and services the manual override switch.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/eds-controller/internal/config"
	"github.com/sweeney/eds-controller/internal/logic"
	"github.com/sweeney/eds-controller/internal/sensor"
	"github.com/sweeney/eds-controller/internal/sequencer"
	"github.com/sweeney/eds-controller/internal/status"
)

// Controller owns the loop state. It is driven by a single goroutine.
type Controller struct {
	seq    *sequencer.Sequencer
	manual *sequencer.Manual
	rig    *config.Rig
	clock  sensor.Clock
	env    sensor.Environment

	fired   *logic.SlotLog
	tally   *logic.Tally
	tracker *status.Tracker
	last    logic.Reading

	// OnHeartbeat, if set, is called when the heartbeat interval elapses.
	OnHeartbeat func(logic.HeartbeatData)

	// OnIteration, if set, is called at the end of every iteration. The
	// systemd watchdog is notified from here.
	OnIteration func()
}

// New returns a Controller. tracker may be nil.
func New(hw sequencer.Hardware, rig *config.Rig, tracker *status.Tracker, start time.Time) *Controller {
	seq := sequencer.New(hw, rig)
	manual := sequencer.NewManual(seq)
	if tracker != nil {
		manual.OnChange = tracker.SetManual
	}
	return &Controller{
		seq:     seq,
		manual:  manual,
		rig:     rig,
		clock:   hw.Clock,
		env:     hw.Env,
		fired:   logic.NewSlotLog(),
		tally:   logic.NewTally(start),
		tracker: tracker,
	}
}

// Counts returns the test counts since startup.
func (c *Controller) Counts() logic.TestCounts { return c.tally.Counts() }

// Cycle runs one loop iteration. Only context cancellation is returned as an
// error; every other failure is logged, lights the red LED and is reported
// in the iteration status.
func (c *Controller) Cycle(ctx context.Context) error {
	var state logic.CycleState
	var cycle status.Cycle
	var errs []error

	defer func() {
		err := errors.Join(errs...)
		c.seq.SetErrorLED(err != nil)
		if err != nil {
			cycle.Err = err.Error()
		}
		cycle.Gate = state.Gate
		c.report(cycle)
	}()

	if err := c.seq.ReleaseAll(c.rig.ActivationPins()); err != nil {
		log.Printf("controller: release outputs: %v", err)
		errs = append(errs, err)
	}

	now, err := c.clock.Now()
	if err != nil {
		log.Printf("controller: read clock: %v", err)
		errs = append(errs, fmt.Errorf("read clock: %w", err))
		return nil
	}
	offset := logic.SolarOffset(c.rig.GMTOffset, now, c.rig.Longitude, c.rig.Latitude, c.rig.EquationOfTime)
	minute := logic.SolarMinute(now, offset)
	cycle.Time = now
	cycle.SolarOffset = offset
	cycle.SolarMinute = minute

	c.seq.ToggleHeartbeat()

	reading, err := c.env.Sample()
	if err != nil {
		log.Printf("controller: environment sample: %v", err)
		errs = append(errs, fmt.Errorf("environment: %w", err))
		reading = c.last
	} else {
		c.last = reading
		cycle.ReadingOK = true
	}
	cycle.Reading = reading

	if logic.IsSolarNoon(minute) {
		slot := logic.Slot{Day: logic.DayIndex(now), Target: logic.SolarNoonMinute}
		if !c.fired.Has(slot) {
			c.fired.Mark(slot)
			if _, err := c.seq.RunSolarNoon(reading); err != nil {
				c.tally.Fault()
				errs = append(errs, err)
			} else {
				c.tally.Count(logic.RecordNoon)
			}
		}
	}

	queue := logic.DueQueue(c.rig.Devices, now, offset, c.fired)
	for _, slot := range queue {
		cycle.Queue = append(cycle.Queue, slot.DeviceID)
	}
	for _, slot := range queue {
		c.fired.Mark(slot)
		state.ScheduleMatched = true
		dev, ok := c.device(slot.DeviceID)
		if !ok {
			continue
		}

		passed, r, err := c.seq.AwaitEnvironment(ctx, &state.Gate, reading)
		reading = r
		if err != nil {
			return err
		}
		if !passed {
			c.tally.Skip()
			c.seq.Skipped(dev)
			continue
		}

		if _, err := c.seq.RunScheduled(dev, reading); err != nil {
			c.tally.Fault()
			errs = append(errs, err)
		} else {
			c.tally.Count(logic.RecordScheduled)
		}
	}
	cycle.Reading = reading

	rec, err := c.manual.Check(ctx, reading)
	if err != nil {
		c.tally.Fault()
		errs = append(errs, err)
	}
	if rec != nil {
		c.tally.Count(rec.Kind)
	}

	if hb := c.tally.CheckHeartbeat(now, c.rig.Heartbeat); hb != nil && c.OnHeartbeat != nil {
		c.OnHeartbeat(*hb)
	}
	return ctx.Err()
}

// Run calls Cycle every ProcessDelay until ctx is cancelled. Outputs are
// released before returning.
func (c *Controller) Run(ctx context.Context) error {
	return c.run(ctx, func(d time.Duration) <-chan time.Time { return time.After(d) })
}

func (c *Controller) run(ctx context.Context, after func(time.Duration) <-chan time.Time) error {
	defer func() {
		if err := c.seq.ReleaseAll(c.rig.OutputPins()); err != nil {
			log.Printf("controller: release outputs on exit: %v", err)
		}
	}()

	for {
		if err := c.Cycle(ctx); err != nil {
			return err
		}
		if c.OnIteration != nil {
			c.OnIteration()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-after(c.rig.ProcessDelay):
		}
	}
}

func (c *Controller) device(id int) (logic.Device, bool) {
	for _, d := range c.rig.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return logic.Device{}, false
}

func (c *Controller) report(cycle status.Cycle) {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(cycle, c.tally.Counts(), c.manual.State(), c.manual.Reason())
}
