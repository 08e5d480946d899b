// Package logic contains pure business logic for EDS field testing: solar
// time, schedule matching, environmental bounds and the manual override
// state machine.
// This package has NO external dependencies (no GPIO, I2C, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Device is an electrically-actuated EDS unit under test.
type Device struct {
	ID        int
	RelayPin  int // activation output
	SensePin  int // PV sense relay
	Schedules []ScheduleEntry
}

// ControlChannel is an unactuated reference PV cell. It is only measured.
type ControlChannel struct {
	ID       int
	SensePin int
}

// SubjectKind distinguishes devices from control channels in records.
type SubjectKind string

const (
	SubjectDevice  SubjectKind = "EDS"
	SubjectControl SubjectKind = "CTRL"
)

// Subject identifies what a measurement was taken on.
type Subject struct {
	Kind SubjectKind
	ID   int
}

// DeviceSubject returns the subject for EDS id.
func DeviceSubject(id int) Subject { return Subject{Kind: SubjectDevice, ID: id} }

// ControlSubject returns the subject for control channel id.
func ControlSubject(id int) Subject { return Subject{Kind: SubjectControl, ID: id} }

// SignedID returns the id in the unified record stream convention:
// devices positive, control channels negated.
func (s Subject) SignedID() int {
	if s.Kind == SubjectControl {
		return -s.ID
	}
	return s.ID
}

func (s Subject) String() string {
	return fmt.Sprintf("%s%d", s.Kind, s.ID)
}

// RecordKind says which trigger produced a measurement record.
type RecordKind string

const (
	RecordScheduled RecordKind = "scheduled"
	RecordNoon      RecordKind = "noon"
	RecordManual    RecordKind = "manual"
)

// Reading is one environmental sample.
type Reading struct {
	Temperature float64 // Celsius
	Humidity    float64 // relative humidity, percent
}

// Measurement is an immutable before/after SCC record for one subject.
type Measurement struct {
	Timestamp   time.Time
	Temperature float64
	Humidity    float64
	Subject     Subject
	Before      float64
	After       float64
	Kind        RecordKind
}

// CycleState holds the per-iteration flags. A fresh zero value is used for
// every loop iteration.
type CycleState struct {
	ScheduleMatched bool
	Gate            GateState
}

// EnvironmentOK reports whether both environmental conditions have passed.
func (c CycleState) EnvironmentOK() bool {
	return c.Gate.Pass()
}
