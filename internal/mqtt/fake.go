package mqtt

import (
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Measurements contains all records that were published.
	Measurements []logic.Measurement

	// Payloads contains the JSON payloads for measurements and events, in
	// publish order.
	Payloads [][]byte

	// Events contains the event lines that were published.
	Events []string

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by WriteMeasurement and WriteEvent.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// WriteMeasurement records the measurement.
func (f *FakePublisher) WriteMeasurement(m logic.Measurement) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatMeasurement(m)
	if err != nil {
		return err
	}
	f.Measurements = append(f.Measurements, m)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// WriteEvent records the event line.
func (f *FakePublisher) WriteEvent(ts time.Time, msg string) error {
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatEvent(ts, msg)
	if err != nil {
		return err
	}
	f.Events = append(f.Events, msg)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Measurements = nil
	f.Payloads = nil
	f.Events = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
