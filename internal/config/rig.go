package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Rig is the typed, validated view of a Store.
type Rig struct {
	Devices  []logic.Device
	Controls []logic.ControlChannel
	Charger  logic.Device // activated unmeasured after the noon calibration
	Manual   logic.Device // driven by the manual override switch

	PowerPin        int
	GreenLEDPin     int
	RedLEDPin       int
	ManualSwitchPin int
	ADCPin          int

	Bounds       logic.Bounds
	TestDuration time.Duration
	TestWindow   time.Duration
	GatePoll     time.Duration
	ManualLimit  time.Duration
	ManualPoll   time.Duration
	ProcessDelay time.Duration
	Heartbeat    time.Duration
	Debounce     time.Duration

	GMTOffset      float64
	Longitude      float64
	Latitude       float64
	EquationOfTime bool

	ADCAddress     byte
	ShuntOhms      float64
	SenseSettle    time.Duration
	RelayActiveLow bool
}

// NewRig reads every parameter the controller needs and validates it.
func NewRig(s *Store) (*Rig, error) {
	r := &Rig{}
	p := &reader{s: s}

	edsIDs := p.ids("EDSIDS")
	ctrlIDs := p.ids("CTRLIDS")

	for _, id := range edsIDs {
		r.Devices = append(r.Devices, p.device(id))
	}
	for _, id := range ctrlIDs {
		if id < 1 {
			p.fail(fmt.Errorf("config: control id %d must be positive", id))
			continue
		}
		r.Controls = append(r.Controls, logic.ControlChannel{
			ID:       id,
			SensePin: p.pin(fmt.Sprintf("CTRL%dPV", id)),
		})
	}
	r.Charger = p.device(p.pin("solarChargerEDSNumber"))
	r.Manual = p.device(p.pin("manualEDSNumber"))

	r.PowerPin = p.pin("POWER")
	r.GreenLEDPin = p.pin("outPinLEDGreen")
	r.RedLEDPin = p.pin("outPinLEDRed")
	r.ManualSwitchPin = p.pin("inPinManualActivate")
	r.ADCPin = p.pin("ADC")

	r.Bounds = logic.Bounds{
		MinTemperature: p.param("minTemperatureCelsius"),
		MaxTemperature: p.param("maxTemperatureCelsius"),
		MinHumidity:    p.param("minRelativeHumidity"),
		MaxHumidity:    p.param("maxRelativeHumidity"),
	}
	r.TestDuration = p.seconds("testDurationSeconds")
	r.TestWindow = p.seconds("testWindowSeconds")
	r.GatePoll = p.seconds("gatePollSeconds")
	r.ManualLimit = p.seconds("manualTimeLimitSeconds")
	r.ManualPoll = p.seconds("manualPollSeconds")
	r.ProcessDelay = p.seconds("processDelaySeconds")
	r.Heartbeat = time.Duration(p.param("heartbeatMinutes") * float64(time.Minute))
	r.Debounce = time.Duration(p.param("switchDebounceMillis") * float64(time.Millisecond))

	r.GMTOffset = p.param("offsetGMT")
	r.Longitude = p.param("degLongitude")
	if s.Has("degLatitude") {
		r.Latitude = p.param("degLatitude")
	}
	r.EquationOfTime = p.flag("equationOfTime")

	r.ADCAddress = byte(p.pin("adcAddress"))
	r.ShuntOhms = p.param("shuntOhms")
	r.SenseSettle = time.Duration(p.param("senseSettleMillis") * float64(time.Millisecond))
	r.RelayActiveLow = p.flag("relayActiveLow")

	if p.err != nil {
		return nil, p.err
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Rig) validate() error {
	var errs []error
	if len(r.Devices) == 0 {
		errs = append(errs, errors.New("config: EDSIDS is empty"))
	}
	seen := make(map[int]bool)
	for _, d := range r.Devices {
		if seen[d.ID] {
			errs = append(errs, fmt.Errorf("config: duplicate EDS id %d", d.ID))
		}
		seen[d.ID] = true
		if err := logic.ValidateSchedules(d, r.TestWindow); err != nil {
			errs = append(errs, fmt.Errorf("config: %w", err))
		}
	}
	if r.Bounds.MinTemperature > r.Bounds.MaxTemperature {
		errs = append(errs, errors.New("config: minTemperatureCelsius above maxTemperatureCelsius"))
	}
	if r.Bounds.MinHumidity > r.Bounds.MaxHumidity {
		errs = append(errs, errors.New("config: minRelativeHumidity above maxRelativeHumidity"))
	}
	for name, d := range map[string]time.Duration{
		"testDurationSeconds":    r.TestDuration,
		"gatePollSeconds":        r.GatePoll,
		"manualTimeLimitSeconds": r.ManualLimit,
		"manualPollSeconds":      r.ManualPoll,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("config: %s must be positive", name))
		}
	}
	if r.TestWindow < 0 || r.ProcessDelay < 0 {
		errs = append(errs, errors.New("config: durations must not be negative"))
	}
	if r.ShuntOhms <= 0 {
		errs = append(errs, errors.New("config: shuntOhms must be positive"))
	}
	return errors.Join(errs...)
}

// OutputPins returns every output the controller drives.
func (r *Rig) OutputPins() []int {
	seen := make(map[int]bool)
	var pins []int
	add := func(p int) {
		if p != 0 && !seen[p] {
			seen[p] = true
			pins = append(pins, p)
		}
	}
	add(r.PowerPin)
	add(r.GreenLEDPin)
	add(r.RedLEDPin)
	add(r.ADCPin)
	for _, d := range r.allDevices() {
		add(d.RelayPin)
		add(d.SensePin)
	}
	for _, c := range r.Controls {
		add(c.SensePin)
	}
	return pins
}

// ActivationPins returns the outputs released at the start of every loop
// iteration: power, every device relay and every sense relay.
func (r *Rig) ActivationPins() []int {
	pins := []int{r.PowerPin}
	seen := map[int]bool{r.PowerPin: true}
	for _, d := range r.allDevices() {
		for _, p := range []int{d.RelayPin, d.SensePin} {
			if !seen[p] {
				seen[p] = true
				pins = append(pins, p)
			}
		}
	}
	for _, c := range r.Controls {
		if !seen[c.SensePin] {
			seen[c.SensePin] = true
			pins = append(pins, c.SensePin)
		}
	}
	return pins
}

func (r *Rig) allDevices() []logic.Device {
	all := append([]logic.Device{}, r.Devices...)
	return append(all, r.Charger, r.Manual)
}

// reader collects the first lookup error so NewRig reads linearly.
type reader struct {
	s   *Store
	err error
}

func (p *reader) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}

func (p *reader) pin(name string) int {
	n, err := p.s.Pin(name)
	if err != nil {
		p.fail(err)
	}
	return n
}

func (p *reader) param(name string) float64 {
	f, err := p.s.Param(name)
	if err != nil {
		p.fail(err)
	}
	return f
}

func (p *reader) seconds(name string) time.Duration {
	return time.Duration(p.param(name) * float64(time.Second))
}

func (p *reader) flag(name string) bool {
	b, err := p.s.Bool(name)
	if err != nil {
		p.fail(err)
	}
	return b
}

func (p *reader) ids(name string) []int {
	ids, err := p.s.IDs(name)
	if err != nil {
		p.fail(err)
	}
	return ids
}

func (p *reader) device(id int) logic.Device {
	if id < 1 {
		p.fail(fmt.Errorf("config: EDS id %d must be positive", id))
		return logic.Device{ID: id}
	}
	d := logic.Device{
		ID:       id,
		RelayPin: p.pin(fmt.Sprintf("EDS%d", id)),
		SensePin: p.pin(fmt.Sprintf("EDS%dPV", id)),
	}
	key := fmt.Sprintf("SCHEDS%d", id)
	if p.s.Has(key) {
		sched, err := p.s.Schedule(key)
		if err != nil {
			p.fail(err)
		}
		d.Schedules = sched
	}
	return d
}
