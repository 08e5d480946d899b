package record

import (
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Event is one recorded WriteEvent call.
type Event struct {
	Timestamp time.Time
	Message   string
}

// Recorder keeps every write in memory for test assertions.
type Recorder struct {
	Measurements []logic.Measurement
	Events       []Event

	// MeasurementError, if set, will be returned by WriteMeasurement.
	MeasurementError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// WriteMeasurement records the measurement.
func (r *Recorder) WriteMeasurement(m logic.Measurement) error {
	if r.MeasurementError != nil {
		return r.MeasurementError
	}
	r.Measurements = append(r.Measurements, m)
	return nil
}

// WriteEvent records the event.
func (r *Recorder) WriteEvent(ts time.Time, msg string) error {
	r.Events = append(r.Events, Event{Timestamp: ts, Message: msg})
	return nil
}

// Close marks the recorder as closed.
func (r *Recorder) Close() error {
	r.Closed = true
	return nil
}

// OfKind returns the recorded measurements of one kind.
func (r *Recorder) OfKind(kind logic.RecordKind) []logic.Measurement {
	var out []logic.Measurement
	for _, m := range r.Measurements {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded writes.
func (r *Recorder) Reset() {
	r.Measurements = nil
	r.Events = nil
	r.MeasurementError = nil
	r.Closed = false
}
