package sequencer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/eds-controller/internal/config"
	"github.com/sweeney/eds-controller/internal/gpio"
	"github.com/sweeney/eds-controller/internal/logic"
	"github.com/sweeney/eds-controller/internal/record"
	"github.com/sweeney/eds-controller/internal/sensor"
)

// Default rig pins used below.
const (
	pinPower  = 18
	pinGreen  = 5
	pinSwitch = 22
	pinCtrl1  = 15
	pinCtrl2  = 23
	relayEDS3 = 6
	senseEDS3 = 12
	relayEDS5 = 26
	senseEDS5 = 20
	relayEDS6 = 27
	senseEDS1 = 7
	senseEDS2 = 8
	senseEDS4 = 16
)

var start = time.Date(2026, 6, 21, 11, 44, 0, 0, time.UTC)

type harness struct {
	io    *gpio.FakeIO
	meter *sensor.FakeMeter
	env   *sensor.FakeEnvironment
	clock *sensor.FakeClock
	rec   *record.Recorder
	rig   *config.Rig
	seq   *Sequencer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	rig, err := config.NewRig(config.NewStore(config.Default()))
	require.NoError(t, err)

	h := &harness{
		io:    gpio.NewFakeIO(),
		meter: sensor.NewFakeMeter(),
		env:   sensor.NewFakeEnvironment(logic.Reading{Temperature: 25, Humidity: 40}),
		clock: sensor.NewFakeClock(start),
		rec:   record.NewRecorder(),
		rig:   rig,
	}
	h.seq = New(Hardware{
		IO:    h.io,
		Meter: h.meter,
		Env:   h.env,
		Clock: h.clock,
		Sink:  h.rec,
		Sleep: h.clock.Advance,
	}, rig)
	return h
}

func (h *harness) device(t *testing.T, id int) logic.Device {
	t.Helper()
	for _, d := range h.rig.Devices {
		if d.ID == id {
			return d
		}
	}
	t.Fatalf("no EDS%d in rig", id)
	return logic.Device{}
}

func (h *harness) hasEvent(substr string) bool {
	for _, e := range h.rec.Events {
		if strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

func TestBeginEnd(t *testing.T) {
	h := newHarness(t)
	dev := h.device(t, 3)

	require.NoError(t, h.seq.Begin(dev))
	assert.True(t, h.io.Outputs[pinPower])
	assert.True(t, h.io.Outputs[relayEDS3])

	require.NoError(t, h.seq.End(dev))
	assert.False(t, h.io.AnyAsserted())
}

func TestActivateHoldsForTestDuration(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.seq.Activate(h.device(t, 3), 30*time.Second))

	assert.Equal(t, start.Add(30*time.Second), h.clock.T)
	assert.Equal(t, 1, h.io.Asserted(relayEDS3))
	assert.Equal(t, 1, h.io.Asserted(pinGreen))
	assert.False(t, h.io.AnyAsserted())
}

func TestActivateReleasesOnBeginFailure(t *testing.T) {
	h := newHarness(t)
	h.io.SetErrors[relayEDS3] = errors.New("line busy")

	err := h.seq.Activate(h.device(t, 3), 30*time.Second)

	require.Error(t, err)
	assert.Equal(t, start, h.clock.T, "no hold after a failed begin")
	assert.False(t, h.io.AnyAsserted())
}

func TestReleaseAll(t *testing.T) {
	h := newHarness(t)
	for _, p := range h.rig.ActivationPins() {
		h.io.Outputs[p] = true
	}

	require.NoError(t, h.seq.ReleaseAll(h.rig.ActivationPins()))
	assert.False(t, h.io.AnyAsserted())
}

func TestAwaitEnvironmentPassesImmediately(t *testing.T) {
	h := newHarness(t)
	var state logic.GateState

	ok, r, err := h.seq.AwaitEnvironment(context.Background(), &state, logic.Reading{})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, logic.Reading{Temperature: 25, Humidity: 40}, r)
	assert.Equal(t, start, h.clock.T)
	assert.Equal(t, 1, h.env.Calls)
}

func TestAwaitEnvironmentLatchesConditionsSeparately(t *testing.T) {
	h := newHarness(t)
	// temperature passes first, humidity later; neither sample passes both
	h.env.Readings = []logic.Reading{
		{Temperature: 25, Humidity: 80},
		{Temperature: 5, Humidity: 40},
	}
	var state logic.GateState

	ok, _, err := h.seq.AwaitEnvironment(context.Background(), &state, logic.Reading{})

	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, state.TempPass)
	assert.True(t, state.HumidPass)
	assert.Equal(t, start.Add(time.Second), h.clock.T)
}

func TestAwaitEnvironmentNeverPassesWaitsExactlyWindow(t *testing.T) {
	h := newHarness(t)
	h.env.Readings = []logic.Reading{{Temperature: 50, Humidity: 90}}
	var state logic.GateState

	ok, r, err := h.seq.AwaitEnvironment(context.Background(), &state, logic.Reading{})

	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, start.Add(h.rig.TestWindow), h.clock.T)
	assert.Equal(t, 2701, h.env.Calls)
	assert.Equal(t, 50.0, r.Temperature)
}

func TestAwaitEnvironmentSkipsPollingWhenLatched(t *testing.T) {
	h := newHarness(t)
	state := logic.GateState{TempPass: true, HumidPass: true}
	last := logic.Reading{Temperature: 12, Humidity: 22}

	ok, r, err := h.seq.AwaitEnvironment(context.Background(), &state, last)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, last, r)
	assert.Zero(t, h.env.Calls)
}

func TestAwaitEnvironmentSensorErrorKeepsLastReading(t *testing.T) {
	h := newHarness(t)
	h.env.Readings = []logic.Reading{{}, {Temperature: 25, Humidity: 40}}
	h.env.Errors = []error{errors.New("crc mismatch")}
	var state logic.GateState
	last := logic.Reading{Temperature: 1, Humidity: 1}

	ok, r, err := h.seq.AwaitEnvironment(context.Background(), &state, last)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 25.0, r.Temperature)
	assert.Equal(t, 2, h.env.Calls)
}

func TestAwaitEnvironmentStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	h.env.Readings = []logic.Reading{{Temperature: 50, Humidity: 90}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var state logic.GateState

	ok, _, err := h.seq.AwaitEnvironment(ctx, &state, logic.Reading{})

	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, h.env.Calls)
}

func TestRunScheduledMeasurementOrder(t *testing.T) {
	h := newHarness(t)
	h.meter.Values[senseEDS3] = []float64{0.50, 0.60}
	h.meter.Values[pinCtrl1] = []float64{0.10, 0.11}
	h.meter.Values[pinCtrl2] = []float64{0.20, 0.22}
	env := logic.Reading{Temperature: 24, Humidity: 35}

	recs, err := h.seq.RunScheduled(h.device(t, 3), env)
	require.NoError(t, err)

	assert.Equal(t, []int{pinCtrl1, pinCtrl2, senseEDS3, senseEDS3, pinCtrl1, pinCtrl2}, h.meter.Calls)
	require.Len(t, recs, 3)
	assert.Equal(t, recs, h.rec.Measurements)

	assert.Equal(t, logic.DeviceSubject(3), recs[0].Subject)
	assert.Equal(t, 0.50, recs[0].Before)
	assert.Equal(t, 0.60, recs[0].After)
	assert.Equal(t, logic.ControlSubject(1), recs[1].Subject)
	assert.Equal(t, 0.11, recs[1].After)
	assert.Equal(t, logic.ControlSubject(2), recs[2].Subject)
	assert.Equal(t, 0.22, recs[2].After)

	for _, m := range recs {
		assert.Equal(t, start, m.Timestamp, "stamped with the start time")
		assert.Equal(t, logic.RecordScheduled, m.Kind)
		assert.Equal(t, 24.0, m.Temperature)
	}
	assert.Equal(t, start.Add(h.rig.TestDuration), h.clock.T)
	assert.Equal(t, 1, h.io.Asserted(relayEDS3))
	assert.False(t, h.io.AnyAsserted())
}

func TestRunScheduledMeasurementFailure(t *testing.T) {
	h := newHarness(t)
	h.meter.Errors[senseEDS3] = errors.New("adc timeout")

	recs, err := h.seq.RunScheduled(h.device(t, 3), logic.Reading{})

	require.Error(t, err)
	assert.Nil(t, recs)
	assert.Empty(t, h.rec.Measurements)
	assert.Zero(t, h.io.Asserted(relayEDS3))
	assert.False(t, h.io.AnyAsserted())
	assert.True(t, h.hasEvent("EDS3 test aborted"))
}

func TestRunScheduledToleratesSinkFailure(t *testing.T) {
	h := newHarness(t)
	h.rec.MeasurementError = errors.New("disk full")

	recs, err := h.seq.RunScheduled(h.device(t, 3), logic.Reading{})

	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestRunScheduledClockFailure(t *testing.T) {
	h := newHarness(t)
	h.clock.Err = errors.New("rtc integrity")

	_, err := h.seq.RunScheduled(h.device(t, 3), logic.Reading{})

	require.Error(t, err)
	assert.Empty(t, h.meter.Calls)
	assert.Zero(t, h.io.Asserted(relayEDS3))
}

func TestRunSolarNoon(t *testing.T) {
	h := newHarness(t)
	h.meter.Values[senseEDS1] = []float64{0.31}
	h.meter.Values[pinCtrl2] = []float64{0.29}

	recs, err := h.seq.RunSolarNoon(logic.Reading{Temperature: 30, Humidity: 30})
	require.NoError(t, err)

	assert.Equal(t, []int{senseEDS1, senseEDS2, senseEDS3, senseEDS4, senseEDS5, pinCtrl1, pinCtrl2}, h.meter.Calls)
	require.Len(t, recs, 7)
	assert.Len(t, h.rec.OfKind(logic.RecordNoon), 7)
	for _, m := range recs {
		assert.Equal(t, m.Before, m.After)
		assert.Equal(t, start, m.Timestamp)
	}
	assert.Equal(t, 0.31, recs[0].Before)
	assert.Equal(t, logic.ControlSubject(2), recs[6].Subject)
	assert.Equal(t, 0.29, recs[6].Before)

	// charger runs one unmeasured activation afterwards
	assert.Equal(t, 1, h.io.Asserted(relayEDS6))
	assert.Equal(t, start.Add(h.rig.TestDuration), h.clock.T)
	assert.False(t, h.io.AnyAsserted())
	assert.True(t, h.hasEvent("Solar Noon SCC for CTRL2"))
}

func TestRunSolarNoonMeasurementFailure(t *testing.T) {
	h := newHarness(t)
	h.meter.Errors[senseEDS2] = errors.New("adc timeout")

	recs, err := h.seq.RunSolarNoon(logic.Reading{})

	require.Error(t, err)
	assert.Len(t, recs, 1, "EDS1 was recorded before the failure")
	assert.Zero(t, h.io.Asserted(relayEDS6))
	assert.True(t, h.hasEvent("calibration aborted"))
}
