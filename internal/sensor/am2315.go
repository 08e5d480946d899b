package sensor

import (
	"fmt"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// AM2315 reads temperature and humidity from an AM2315 encased hygrometer.
type AM2315 struct {
	bus   Bus
	addr  byte
	sleep func(time.Duration)
}

// NewAM2315 returns a hygrometer reader.
func NewAM2315(bus Bus, addr byte) *AM2315 {
	return &AM2315{bus: bus, addr: addr, sleep: time.Sleep}
}

// Sample wakes the sensor, requests four registers and decodes the reply.
func (s *AM2315) Sample() (logic.Reading, error) {
	// The sensor sleeps between reads; the first write only wakes it and
	// is expected to be NACKed.
	_ = s.bus.WriteBytes(s.addr, []byte{0x00})
	s.sleep(2 * time.Millisecond)

	if err := s.bus.WriteBytes(s.addr, []byte{0x03, 0x00, 0x04}); err != nil {
		return logic.Reading{}, fmt.Errorf("am2315: request: %w", err)
	}
	s.sleep(10 * time.Millisecond)

	data, err := s.bus.ReadBytes(s.addr, 8)
	if err != nil {
		return logic.Reading{}, fmt.Errorf("am2315: read: %w", err)
	}
	return decodeAM2315(data)
}

func decodeAM2315(data []byte) (logic.Reading, error) {
	if len(data) < 8 {
		return logic.Reading{}, fmt.Errorf("am2315: short read (%d bytes)", len(data))
	}
	if data[0] != 0x03 || data[1] != 0x04 {
		return logic.Reading{}, fmt.Errorf("am2315: unexpected reply header %#x %#x", data[0], data[1])
	}
	want := uint16(data[7])<<8 | uint16(data[6])
	if got := crc16(data[:6]); got != want {
		return logic.Reading{}, fmt.Errorf("am2315: crc mismatch: got %#04x want %#04x", got, want)
	}

	humid := float64(uint16(data[2])<<8|uint16(data[3])) / 10
	rawTemp := uint16(data[4])<<8 | uint16(data[5])
	temp := float64(rawTemp&0x7FFF) / 10
	if rawTemp&0x8000 != 0 {
		temp = -temp
	}
	return logic.Reading{Temperature: temp, Humidity: humid}, nil
}

// crc16 is the Modbus CRC used by the AM2315.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
