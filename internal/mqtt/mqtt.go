// Package mqtt publishes measurement records, operator events and system
// lifecycle events to an MQTT broker, with an abstraction for testing.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
	"github.com/sweeney/eds-controller/internal/record"
)

// TopicMeasurements is the MQTT topic for before/after SCC records.
const TopicMeasurements = "eds/field/measurements"

// TopicEvents is the MQTT topic for operator-facing event lines.
const TopicEvents = "eds/field/events"

// TopicSystem is the MQTT topic for system lifecycle events.
const TopicSystem = "eds/field/system"

// Publisher publishes records and events to MQTT. It is a record.Sink so it
// can sit in a record.Multi next to the file sinks.
type Publisher interface {
	record.Sink

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool
}

// MeasurementPayload is the MQTT message for one measurement record.
type MeasurementPayload struct {
	Measurement MeasurementFields `json:"measurement"`
}

// MeasurementFields carries the record. ID follows the signed convention:
// devices positive, control channels negative.
type MeasurementFields struct {
	Timestamp   string  `json:"timestamp"`
	Kind        string  `json:"kind"`
	ID          int     `json:"id"`
	Subject     string  `json:"subject"`
	Temperature float64 `json:"temperature_c"`
	Humidity    float64 `json:"humidity_pct"`
	Before      float64 `json:"before_a"`
	After       float64 `json:"after_a"`
}

// FormatMeasurement creates the JSON payload for a measurement record.
func FormatMeasurement(m logic.Measurement) ([]byte, error) {
	payload := MeasurementPayload{
		Measurement: MeasurementFields{
			Timestamp:   m.Timestamp.UTC().Format(time.RFC3339),
			Kind:        string(m.Kind),
			ID:          m.Subject.SignedID(),
			Subject:     m.Subject.String(),
			Temperature: m.Temperature,
			Humidity:    m.Humidity,
			Before:      m.Before,
			After:       m.After,
		},
	}
	return json.Marshal(payload)
}

// EventPayload is the MQTT message for an operator event line.
type EventPayload struct {
	Event EventFields `json:"event"`
}

// EventFields contains the event details.
type EventFields struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// FormatEvent creates the JSON payload for an event line.
func FormatEvent(ts time.Time, msg string) ([]byte, error) {
	return json.Marshal(EventPayload{
		Event: EventFields{
			Timestamp: ts.UTC().Format(time.RFC3339),
			Message:   msg,
		},
	})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
