package sensor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/eds-controller/internal/gpio"
	"github.com/sweeney/eds-controller/internal/logic"
)

// fakeBus records writes and returns scripted reads per address.
type fakeBus struct {
	writes  [][]byte
	reads   map[byte][][]byte
	readErr error
}

func newFakeBus() *fakeBus {
	return &fakeBus{reads: make(map[byte][][]byte)}
}

func (b *fakeBus) WriteBytes(addr byte, value []byte) error {
	b.writes = append(b.writes, append([]byte{addr}, value...))
	return nil
}

func (b *fakeBus) ReadBytes(addr byte, num int) ([]byte, error) {
	if b.readErr != nil {
		return nil, b.readErr
	}
	q := b.reads[addr]
	if len(q) == 0 {
		return nil, errors.New("no data")
	}
	b.reads[addr] = q[1:]
	return q[0], nil
}

func am2315Frame(humid, temp uint16) []byte {
	f := []byte{0x03, 0x04, byte(humid >> 8), byte(humid), byte(temp >> 8), byte(temp)}
	crc := crc16(f)
	return append(f, byte(crc), byte(crc>>8))
}

func TestAM2315Sample(t *testing.T) {
	bus := newFakeBus()
	bus.reads[AddrAM2315] = [][]byte{am2315Frame(453, 231)}
	s := NewAM2315(bus, AddrAM2315)
	s.sleep = func(time.Duration) {}

	r, err := s.Sample()
	require.NoError(t, err)
	assert.InDelta(t, 45.3, r.Humidity, 1e-9)
	assert.InDelta(t, 23.1, r.Temperature, 1e-9)
	assert.Equal(t, []byte{AddrAM2315, 0x03, 0x00, 0x04}, bus.writes[1])
}

func TestAM2315NegativeTemperature(t *testing.T) {
	r, err := decodeAM2315(am2315Frame(800, 0x8000|52))
	require.NoError(t, err)
	assert.InDelta(t, -5.2, r.Temperature, 1e-9)
	assert.InDelta(t, 80.0, r.Humidity, 1e-9)
}

func TestAM2315BadCRC(t *testing.T) {
	frame := am2315Frame(453, 231)
	frame[7] ^= 0xFF
	_, err := decodeAM2315(frame)
	assert.Error(t, err)
}

func TestAM2315ShortRead(t *testing.T) {
	_, err := decodeAM2315([]byte{0x03, 0x04})
	assert.Error(t, err)
}

func TestPCF8523Now(t *testing.T) {
	bus := newFakeBus()
	// 2026-10-19 14:05:09, weekday 1
	bus.reads[AddrPCF8523] = [][]byte{{0x09, 0x05, 0x14, 0x19, 0x01, 0x10, 0x26}}
	loc := ZoneFor(-5)
	rtc := NewPCF8523(bus, AddrPCF8523, loc)

	got, err := rtc.Now()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 14, 5, 9, 0, loc), got)
	assert.Equal(t, []byte{AddrPCF8523, pcf8523RegSeconds}, bus.writes[0])
}

func TestPCF8523OscillatorStopped(t *testing.T) {
	_, err := decodePCF8523([]byte{0x80 | 0x09, 0x05, 0x14, 0x19, 0x01, 0x10, 0x26}, time.UTC)
	assert.ErrorIs(t, err, ErrClockIntegrity)
}

func TestPCF8523InvalidRegisters(t *testing.T) {
	_, err := decodePCF8523([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x13, 0x26}, time.UTC)
	assert.Error(t, err)
}

func TestPCF8523ReadError(t *testing.T) {
	bus := newFakeBus()
	bus.readErr = errors.New("i2c nack")
	_, err := NewPCF8523(bus, AddrPCF8523, nil).Now()
	assert.Error(t, err)
}

func TestSCCMeterMeasure(t *testing.T) {
	bus := newFakeBus()
	// 0x1000 = 4096 counts = 0.512 V
	bus.reads[AddrADS1115] = [][]byte{{0x10, 0x00}}
	io := gpio.NewFakeIO()
	m := NewSCCMeter(bus, AddrADS1115, io, 25, 0.5, 50*time.Millisecond)
	var slept time.Duration
	m.sleep = func(d time.Duration) { slept += d }

	amps, err := m.Measure(7)
	require.NoError(t, err)
	assert.InDelta(t, 1.024, amps, 1e-9)
	assert.Equal(t, 60*time.Millisecond, slept)
	assert.Equal(t, 1, io.Asserted(7))
	assert.Equal(t, 1, io.Asserted(25))
	assert.False(t, io.AnyAsserted(), "sense relay and enable must be released")
}

func TestSCCMeterReleasesOnError(t *testing.T) {
	bus := newFakeBus()
	bus.readErr = errors.New("i2c nack")
	io := gpio.NewFakeIO()
	m := NewSCCMeter(bus, AddrADS1115, io, 0, 0.5, 0)
	m.sleep = func(time.Duration) {}

	_, err := m.Measure(8)
	assert.Error(t, err)
	assert.False(t, io.AnyAsserted())
}

func TestFakeEnvironmentSequence(t *testing.T) {
	f := NewFakeEnvironment(logic.Reading{Temperature: 1}, logic.Reading{Temperature: 2})
	f.Errors = []error{nil, nil, errors.New("bus busy")}

	r, err := f.Sample()
	require.NoError(t, err)
	assert.Equal(t, 1.0, r.Temperature)
	r, err = f.Sample()
	require.NoError(t, err)
	assert.Equal(t, 2.0, r.Temperature)
	_, err = f.Sample()
	assert.Error(t, err)
	assert.Equal(t, 3, f.Calls)
}

func TestFakeMeterValues(t *testing.T) {
	m := NewFakeMeter()
	m.Values[7] = []float64{1.5, 2.5}

	v, _ := m.Measure(7)
	assert.Equal(t, 1.5, v)
	v, _ = m.Measure(7)
	assert.Equal(t, 2.5, v)
	v, _ = m.Measure(7)
	assert.Equal(t, 2.5, v, "last value repeats")
	assert.Equal(t, []int{7, 7, 7}, m.Calls)
}
