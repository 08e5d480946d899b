package sequencer

import (
	"fmt"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// RunScheduled runs the full test procedure for dev once the environmental
// gate has passed: controls before, device before, activation, device after,
// controls after. It writes one scheduled record for the device and one per
// control channel, all stamped with the time the procedure started.
//
// A measurement failure aborts the procedure before anything is recorded;
// outputs are still released and an error event is written.
func (s *Sequencer) RunScheduled(dev logic.Device, env logic.Reading) ([]logic.Measurement, error) {
	ts, err := s.hw.Clock.Now()
	if err != nil {
		err = fmt.Errorf("EDS%d: read clock: %w", dev.ID, err)
		s.event(s.now(), "ERROR. EDS%d test aborted: %v", dev.ID, err)
		return nil, err
	}
	s.event(ts, "Checks passed. Initiating testing procedure for EDS%d", dev.ID)

	recs, err := s.runScheduled(dev, env, ts)
	if err != nil {
		s.event(s.now(), "ERROR. EDS%d test aborted: %v", dev.ID, err)
		return nil, err
	}
	for _, m := range recs {
		s.write(m)
	}
	return recs, nil
}

func (s *Sequencer) runScheduled(dev logic.Device, env logic.Reading, ts time.Time) ([]logic.Measurement, error) {
	controls := s.rig.Controls
	ctrlBefore := make([]float64, len(controls))
	ctrlAfter := make([]float64, len(controls))
	subject := logic.DeviceSubject(dev.ID)

	for i, c := range controls {
		v, err := s.measure(logic.ControlSubject(c.ID), c.SensePin)
		if err != nil {
			return nil, err
		}
		ctrlBefore[i] = v
	}
	before, err := s.measure(subject, dev.SensePin)
	if err != nil {
		return nil, err
	}

	if err := s.Activate(dev, s.rig.TestDuration); err != nil {
		return nil, err
	}

	after, err := s.measure(subject, dev.SensePin)
	if err != nil {
		return nil, err
	}
	for i, c := range controls {
		v, err := s.measure(logic.ControlSubject(c.ID), c.SensePin)
		if err != nil {
			return nil, err
		}
		ctrlAfter[i] = v
	}

	rec := func(sub logic.Subject, b, a float64) logic.Measurement {
		return logic.Measurement{
			Timestamp:   ts,
			Temperature: env.Temperature,
			Humidity:    env.Humidity,
			Subject:     sub,
			Before:      b,
			After:       a,
			Kind:        logic.RecordScheduled,
		}
	}
	recs := []logic.Measurement{rec(subject, before, after)}
	for i, c := range controls {
		recs = append(recs, rec(logic.ControlSubject(c.ID), ctrlBefore[i], ctrlAfter[i]))
	}
	return recs, nil
}
