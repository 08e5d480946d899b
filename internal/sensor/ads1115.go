package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/eds-controller/internal/gpio"
)

// ADS1115 single-shot conversion of AIN0 against ground at ±4.096 V,
// 128 samples/s, comparator disabled.
const (
	adsRegConversion = 0x00
	adsRegConfig     = 0x01
	adsConfigMSB     = 0xC3
	adsConfigLSB     = 0x83
	adsFullScale     = 4.096
)

// SCCMeter measures PV short-circuit current through a shunt resistor read
// by an ADS1115. The cell under test is routed to the shunt by asserting its
// sense relay for the duration of the reading.
type SCCMeter struct {
	bus       Bus
	addr      byte
	io        gpio.DigitalIO
	enablePin int // optional ADC enable output, 0 = none
	shunt     float64
	settle    time.Duration
	sleep     func(time.Duration)
}

// NewSCCMeter returns a meter. shuntOhms must be positive.
func NewSCCMeter(bus Bus, addr byte, io gpio.DigitalIO, enablePin int, shuntOhms float64, settle time.Duration) *SCCMeter {
	return &SCCMeter{
		bus:       bus,
		addr:      addr,
		io:        io,
		enablePin: enablePin,
		shunt:     shuntOhms,
		settle:    settle,
		sleep:     time.Sleep,
	}
}

// Measure selects the sense relay, waits for it to settle, and converts one
// sample. The relay is always released before returning.
func (m *SCCMeter) Measure(sensePin int) (amps float64, err error) {
	if err := m.io.SetOutput(sensePin, true); err != nil {
		return 0, fmt.Errorf("scc: select pin %d: %w", sensePin, err)
	}
	defer func() {
		if rerr := m.io.SetOutput(sensePin, false); rerr != nil && err == nil {
			err = fmt.Errorf("scc: release pin %d: %w", sensePin, rerr)
		}
	}()
	if m.enablePin != 0 {
		if err := m.io.SetOutput(m.enablePin, true); err != nil {
			return 0, fmt.Errorf("scc: enable adc: %w", err)
		}
		defer m.io.SetOutput(m.enablePin, false)
	}
	m.sleep(m.settle)

	volts, err := m.convert()
	if err != nil {
		return 0, err
	}
	return volts / m.shunt, nil
}

func (m *SCCMeter) convert() (float64, error) {
	if err := m.bus.WriteBytes(m.addr, []byte{adsRegConfig, adsConfigMSB, adsConfigLSB}); err != nil {
		return 0, fmt.Errorf("scc: start conversion: %w", err)
	}
	m.sleep(10 * time.Millisecond)
	if err := m.bus.WriteBytes(m.addr, []byte{adsRegConversion}); err != nil {
		return 0, fmt.Errorf("scc: select conversion register: %w", err)
	}
	data, err := m.bus.ReadBytes(m.addr, 2)
	if err != nil {
		return 0, fmt.Errorf("scc: read conversion: %w", err)
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("scc: short read (%d bytes)", len(data))
	}
	raw := int16(uint16(data[0])<<8 | uint16(data[1]))
	return float64(raw) * adsFullScale / 32768, nil
}
