package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Manual drives the manual override switch: flipping it on starts an
// open-ended activation of the manual device; flipping it off, or running
// past the time limit, ends it with a before/after record.
type Manual struct {
	seq *Sequencer
	fsm *logic.ManualMachine
	dev logic.Device
	pin int

	// OnChange, if set, is called after every state transition so observers
	// outside the loop goroutine see a run while it is in progress.
	OnChange func(logic.ManualState, logic.AbortReason)
}

// NewManual returns the override controller for the rig's manual device.
func NewManual(seq *Sequencer) *Manual {
	return &Manual{
		seq: seq,
		fsm: logic.NewManualMachine(seq.rig.ManualLimit),
		dev: seq.rig.Manual,
		pin: seq.rig.ManualSwitchPin,
	}
}

// State returns the override state machine's current state.
func (m *Manual) State() logic.ManualState { return m.fsm.State() }

// Reason returns why the last manual run ended.
func (m *Manual) Reason() logic.AbortReason { return m.fsm.Reason() }

// Check consumes a pending switch edge. When the switch was turned on it runs
// the manual test to completion and returns its record; otherwise it returns
// nil. Faults are reported through a MAJOR ERROR event and the returned
// error, with every output the run touched released.
func (m *Manual) Check(ctx context.Context, env logic.Reading) (*logic.Measurement, error) {
	edge, err := m.seq.hw.IO.PollEdge(m.pin)
	if err != nil {
		return nil, fmt.Errorf("manual: poll switch: %w", err)
	}
	if !edge {
		return nil, nil
	}
	high, err := m.seq.hw.IO.ReadInput(m.pin)
	if err != nil {
		return nil, fmt.Errorf("manual: read switch: %w", err)
	}
	if !m.fsm.Arm(edge, high) {
		return nil, nil
	}
	m.notify()
	defer func() {
		m.fsm.Finish()
		m.notify()
	}()

	rec, err := m.run(ctx, env)
	if err != nil {
		m.fsm.Fail()
		m.notify()
		m.seq.event(m.seq.now(), "MAJOR ERROR. Cannot complete EDS%d manual testing sequence: %v", m.dev.ID, err)
		return nil, err
	}
	return rec, nil
}

func (m *Manual) run(ctx context.Context, env logic.Reading) (rec *logic.Measurement, err error) {
	s := m.seq
	defer func() {
		if rerr := s.End(m.dev); rerr != nil {
			err = errors.Join(err, rerr)
		}
		s.setGreen(false)
	}()

	m.fsm.Start()
	m.notify()
	s.setGreen(true)

	ts, err := s.hw.Clock.Now()
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	s.event(ts, "FORCED. Running EDS%d testing sequence. FLIP SWITCH OFF TO STOP.", m.dev.ID)

	subject := logic.DeviceSubject(m.dev.ID)
	before, err := s.measure(subject, m.dev.SensePin)
	if err != nil {
		return nil, err
	}
	s.event(ts, "EDS%d PV [BEFORE] SCC: %g A", m.dev.ID, before)

	if err := s.Begin(m.dev); err != nil {
		return nil, err
	}

	var elapsed time.Duration
	for {
		s.hw.Sleep(s.rig.ManualPoll)
		elapsed += s.rig.ManualPoll

		edge, err := s.hw.IO.PollEdge(m.pin)
		if err != nil {
			return nil, fmt.Errorf("poll switch: %w", err)
		}
		if m.fsm.Poll(edge, elapsed) {
			m.notify()
			break
		}
		if ctx.Err() != nil {
			log.Printf("manual: EDS%d run interrupted after %v", m.dev.ID, elapsed)
			break
		}
	}

	if err := s.End(m.dev); err != nil {
		return nil, err
	}
	after, err := s.measure(subject, m.dev.SensePin)
	if err != nil {
		return nil, err
	}
	s.event(s.now(), "EDS%d PV [AFTER] SCC: %g A (%s after %v)", m.dev.ID, after, m.endReason(), elapsed)

	out := logic.Measurement{
		Timestamp:   ts,
		Temperature: env.Temperature,
		Humidity:    env.Humidity,
		Subject:     subject,
		Before:      before,
		After:       after,
		Kind:        logic.RecordManual,
	}
	s.write(out)
	return &out, nil
}

func (m *Manual) notify() {
	if m.OnChange != nil {
		m.OnChange(m.fsm.State(), m.fsm.Reason())
	}
}

func (m *Manual) endReason() string {
	if r := m.fsm.Reason(); r != logic.AbortNone {
		return string(r)
	}
	return "INTERRUPTED"
}
