package logic

import "time"

// ManualState is a state of the manual override machine.
type ManualState string

const (
	ManualIdle     ManualState = "IDLE"
	ManualArmed    ManualState = "ARMED"
	ManualRunning  ManualState = "RUNNING"
	ManualAborting ManualState = "ABORTING"
)

// AbortReason says why a running manual test stopped.
type AbortReason string

const (
	AbortNone      AbortReason = ""
	AbortSwitchOff AbortReason = "SWITCH_OFF"
	AbortTimeLimit AbortReason = "TIME_LIMIT"
	AbortFault     AbortReason = "FAULT"
)

// ManualMachine is the manual override state machine. It holds no hardware;
// the caller performs the side effects that go with each transition.
type ManualMachine struct {
	limit  time.Duration
	state  ManualState
	reason AbortReason
}

// NewManualMachine returns an idle machine that aborts a run once its
// elapsed time exceeds limit.
func NewManualMachine(limit time.Duration) *ManualMachine {
	return &ManualMachine{limit: limit, state: ManualIdle}
}

// State returns the current state.
func (m *ManualMachine) State() ManualState { return m.state }

// Reason returns why the last run was aborted.
func (m *ManualMachine) Reason() AbortReason { return m.reason }

// Limit returns the run ceiling.
func (m *ManualMachine) Limit() time.Duration { return m.limit }

// Arm moves Idle to Armed when an edge was seen and the switch reads high.
func (m *ManualMachine) Arm(edge, high bool) bool {
	if m.state != ManualIdle || !edge || !high {
		return false
	}
	m.state = ManualArmed
	m.reason = AbortNone
	return true
}

// Start moves Armed to Running.
func (m *ManualMachine) Start() bool {
	if m.state != ManualArmed {
		return false
	}
	m.state = ManualRunning
	return true
}

// Poll evaluates one Running tick. It moves to Aborting when the switch
// produced another edge or elapsed exceeds the limit.
func (m *ManualMachine) Poll(edge bool, elapsed time.Duration) bool {
	if m.state != ManualRunning {
		return false
	}
	switch {
	case edge:
		m.reason = AbortSwitchOff
	case elapsed > m.limit:
		m.reason = AbortTimeLimit
	default:
		return false
	}
	m.state = ManualAborting
	return true
}

// Fail moves any non-idle state to Aborting with a fault reason.
func (m *ManualMachine) Fail() {
	if m.state == ManualIdle {
		return
	}
	m.state = ManualAborting
	m.reason = AbortFault
}

// Finish returns the machine to Idle from any state.
func (m *ManualMachine) Finish() {
	m.state = ManualIdle
}
