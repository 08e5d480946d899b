// Package status provides a thread-safe status tracker for the EDS controller.
// The control loop writes to it; HTTP handlers, Prometheus and MQTT system
// events read from it.
package status

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/eds-controller/internal/logic"
)

// maxEvents caps the in-memory event history.
const maxEvents = 100

// NetworkInfo contains network state as published by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	HeartbeatMs    int64
	ProcessDelayMs int64
	Broker         string
	HTTPAddr       string
	DataDir        string
	Longitude      float64
	GMTOffset      float64
	Devices        []int
	Controls       []int
}

// Cycle is what the control loop saw in one iteration.
type Cycle struct {
	Time        time.Time
	SolarOffset float64
	SolarMinute float64
	Reading     logic.Reading
	ReadingOK   bool
	Queue       []int // device ids due this iteration
	Gate        logic.GateState
	Err         string // empty when the iteration completed cleanly
}

// Event is one operator-facing event line.
type Event struct {
	Timestamp time.Time
	Message   string
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Cycle         Cycle
	Iterations    int
	Errors        int
	Counts        logic.TestCounts
	Manual        logic.ManualState
	ManualReason  logic.AbortReason
	Latest        map[string]logic.Measurement // keyed by subject, e.g. "EDS3"
	Events        []Event                      // oldest first
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable controller state behind an RWMutex. It is also a
// record.Sink so the latest record per subject and recent events are
// available without reading the data files.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot

	scc *prometheus.GaugeVec
	reg *prometheus.Registry
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	t := &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Manual:    logic.ManualIdle,
			Latest:    make(map[string]logic.Measurement),
		},
	}
	t.reg = t.newRegistry()
	return t
}

// Update stores one completed iteration.
func (t *Tracker) Update(c Cycle, counts logic.TestCounts, manual logic.ManualState, reason logic.AbortReason) {
	t.mu.Lock()
	t.snap.Cycle = c
	t.snap.Iterations++
	if c.Err != "" {
		t.snap.Errors++
	}
	t.snap.Counts = counts
	t.snap.Manual = manual
	t.snap.ManualReason = reason
	t.mu.Unlock()
}

// SetManual records a manual override transition as it happens. Update
// overwrites it at the end of the iteration.
func (t *Tracker) SetManual(state logic.ManualState, reason logic.AbortReason) {
	t.mu.Lock()
	t.snap.Manual = state
	t.snap.ManualReason = reason
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// WriteMeasurement keeps m as the latest record for its subject.
func (t *Tracker) WriteMeasurement(m logic.Measurement) error {
	key := m.Subject.String()
	t.mu.Lock()
	t.snap.Latest[key] = m
	t.mu.Unlock()
	t.scc.WithLabelValues(key, "before").Set(m.Before)
	t.scc.WithLabelValues(key, "after").Set(m.After)
	return nil
}

// WriteEvent appends to the event history, dropping the oldest past the cap.
func (t *Tracker) WriteEvent(ts time.Time, msg string) error {
	t.mu.Lock()
	t.snap.Events = append(t.snap.Events, Event{Timestamp: ts, Message: msg})
	if n := len(t.snap.Events); n > maxEvents {
		t.snap.Events = append([]Event(nil), t.snap.Events[n-maxEvents:]...)
	}
	t.mu.Unlock()
	return nil
}

// Close is a no-op; the tracker outlives the sinks.
func (t *Tracker) Close() error { return nil }

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Latest = make(map[string]logic.Measurement, len(t.snap.Latest))
	for k, v := range t.snap.Latest {
		s.Latest[k] = v
	}
	s.Events = append([]Event(nil), t.snap.Events...)
	s.Cycle.Queue = append([]int(nil), t.snap.Cycle.Queue...)
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}

// read returns f applied to the live state under the read lock.
func (t *Tracker) read(f func(s *Snapshot) float64) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return f(&t.snap)
}
