package sequencer

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// AwaitEnvironment polls the environmental sensor until both conditions have
// passed or the test window is used up. Passed conditions stay latched in
// state, so a later device in the same iteration does not wait again.
//
// Elapsed time is the sum of poll intervals; a sequence that never passes
// returns false after exactly the configured window. Sensor errors are logged
// and the previous reading is kept. The green LED blinks while waiting.
func (s *Sequencer) AwaitEnvironment(ctx context.Context, state *logic.GateState, last logic.Reading) (bool, logic.Reading, error) {
	if state.Pass() {
		return true, last, nil
	}

	var elapsed time.Duration
	for {
		r, err := s.hw.Env.Sample()
		if err != nil {
			log.Printf("sequencer: environment sample: %v", err)
		} else {
			last = r
			if state.Observe(s.rig.Bounds, r) {
				return true, last, nil
			}
		}
		if elapsed >= s.rig.TestWindow {
			return false, last, nil
		}
		if err := ctx.Err(); err != nil {
			return false, last, err
		}
		s.ToggleHeartbeat()
		s.hw.Sleep(s.rig.GatePoll)
		elapsed += s.rig.GatePoll
	}
}

// Skipped records that dev's scheduled test did not run because the
// environment never passed within the test window.
func (s *Sequencer) Skipped(dev logic.Device) {
	s.event(s.now(), "Weather checks failed for EDS%d within %v. Test skipped.", dev.ID, s.rig.TestWindow)
}
