package sensor

import (
	"errors"
	"fmt"
	"time"
)

// ErrClockIntegrity is returned when the RTC oscillator stopped and the
// stored time can no longer be trusted.
var ErrClockIntegrity = errors.New("rtc: oscillator stopped, time not valid")

const pcf8523RegSeconds = 0x03

// PCF8523 reads wall-clock time from a PCF8523 real-time clock.
type PCF8523 struct {
	bus      Bus
	addr     byte
	location *time.Location
}

// NewPCF8523 returns an RTC reader. The RTC holds local time for location.
func NewPCF8523(bus Bus, addr byte, location *time.Location) *PCF8523 {
	if location == nil {
		location = time.UTC
	}
	return &PCF8523{bus: bus, addr: addr, location: location}
}

// Now reads the seven time registers.
func (r *PCF8523) Now() (time.Time, error) {
	if err := r.bus.WriteBytes(r.addr, []byte{pcf8523RegSeconds}); err != nil {
		return time.Time{}, fmt.Errorf("rtc: select register: %w", err)
	}
	data, err := r.bus.ReadBytes(r.addr, 7)
	if err != nil {
		return time.Time{}, fmt.Errorf("rtc: read: %w", err)
	}
	return decodePCF8523(data, r.location)
}

func decodePCF8523(data []byte, loc *time.Location) (time.Time, error) {
	if len(data) < 7 {
		return time.Time{}, fmt.Errorf("rtc: short read (%d bytes)", len(data))
	}
	if data[0]&0x80 != 0 {
		return time.Time{}, ErrClockIntegrity
	}
	sec := fromBCD(data[0] & 0x7F)
	min := fromBCD(data[1] & 0x7F)
	hour := fromBCD(data[2] & 0x3F)
	day := fromBCD(data[3] & 0x3F)
	// data[4] is the weekday, derived by time.Date
	month := fromBCD(data[5] & 0x1F)
	year := 2000 + fromBCD(data[6])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("rtc: invalid time %04d-%02d-%02d %02d:%02d:%02d",
			year, month, day, hour, min, sec)
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, 0, loc), nil
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
