package sequencer

import (
	"fmt"

	"github.com/sweeney/eds-controller/internal/logic"
)

// RunSolarNoon takes the daily calibration: one SCC reading of every device
// and then every control channel, each written as a noon record with
// before == after. It then runs one unmeasured activation of the charger.
func (s *Sequencer) RunSolarNoon(env logic.Reading) ([]logic.Measurement, error) {
	ts, err := s.hw.Clock.Now()
	if err != nil {
		return nil, fmt.Errorf("solar noon: read clock: %w", err)
	}

	type target struct {
		subject logic.Subject
		pin     int
	}
	var targets []target
	for _, d := range s.rig.Devices {
		targets = append(targets, target{logic.DeviceSubject(d.ID), d.SensePin})
	}
	for _, c := range s.rig.Controls {
		targets = append(targets, target{logic.ControlSubject(c.ID), c.SensePin})
	}

	var recs []logic.Measurement
	for _, t := range targets {
		v, err := s.measure(t.subject, t.pin)
		if err != nil {
			s.event(s.now(), "ERROR. Solar noon calibration aborted: %v", err)
			return recs, err
		}
		m := logic.Measurement{
			Timestamp:   ts,
			Temperature: env.Temperature,
			Humidity:    env.Humidity,
			Subject:     t.subject,
			Before:      v,
			After:       v,
			Kind:        logic.RecordNoon,
		}
		s.event(ts, "Solar Noon SCC for %s: %g", t.subject, v)
		s.write(m)
		recs = append(recs, m)
	}

	if err := s.Activate(s.rig.Charger, s.rig.TestDuration); err != nil {
		s.event(s.now(), "ERROR. Charger EDS%d activation failed: %v", s.rig.Charger.ID, err)
		return recs, err
	}
	return recs, nil
}
