// Package sensor provides the rig's real-time clock, hygrometer and SCC meter
// behind small interfaces. Real drivers talk I2C; fakes script readings for
// tests.
package sensor

import (
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Clock returns the current wall-clock time.
type Clock interface {
	Now() (time.Time, error)
}

// Environment samples ambient temperature and humidity.
type Environment interface {
	Sample() (logic.Reading, error)
}

// Meter measures the short-circuit current (amps) of the PV cell selected by
// a sense pin.
type Meter interface {
	Measure(sensePin int) (float64, error)
}

// Bus is the subset of an I2C bus the drivers use.
// github.com/reef-pi/rpi/i2c.Bus satisfies it.
type Bus interface {
	ReadBytes(addr byte, num int) ([]byte, error)
	WriteBytes(addr byte, value []byte) error
}

// Default I2C addresses.
const (
	AddrPCF8523 = 0x68
	AddrAM2315  = 0x5C
	AddrADS1115 = 0x48
)

// SystemClock reads the host clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the host time.
func (c SystemClock) Now() (time.Time, error) {
	if c.Location == nil {
		return time.Now(), nil
	}
	return time.Now().In(c.Location), nil
}

// ZoneFor returns a fixed zone for a GMT offset in hours.
func ZoneFor(gmtOffset float64) *time.Location {
	return time.FixedZone("rig", int(gmtOffset*3600))
}
