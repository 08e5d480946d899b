// Package record delivers measurement records and operator events to durable
// sinks. Sinks translate the tagged subject to the signed id convention
// (control channels negative) at their boundary.
package record

import (
	"errors"
	"log"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Sink receives completed measurements and timestamped event messages.
type Sink interface {
	// WriteMeasurement stores one record. Errors are reported but must not
	// crash the controller.
	WriteMeasurement(m logic.Measurement) error

	// WriteEvent stores one operator-facing log line.
	WriteEvent(ts time.Time, msg string) error

	// Close flushes and releases the sink.
	Close() error
}

// Multi fans writes out to several sinks. One failing sink does not stop
// the others; all errors are joined.
type Multi []Sink

// WriteMeasurement writes to every sink.
func (m Multi) WriteMeasurement(rec logic.Measurement) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteMeasurement(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteEvent writes to every sink.
func (m Multi) WriteEvent(ts time.Time, msg string) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteEvent(ts, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Logger echoes events to the process log; measurements are logged in one
// line each.
type Logger struct{}

// WriteMeasurement logs the record.
func (Logger) WriteMeasurement(m logic.Measurement) error {
	log.Printf("record: %s %s before=%.4f after=%.4f temp=%.1f humid=%.1f",
		m.Kind, m.Subject, m.Before, m.After, m.Temperature, m.Humidity)
	return nil
}

// WriteEvent logs the message.
func (Logger) WriteEvent(_ time.Time, msg string) error {
	log.Printf("event: %s", msg)
	return nil
}

// Close is a no-op.
func (Logger) Close() error { return nil }
