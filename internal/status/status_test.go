package status

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleCycle() Cycle {
	return Cycle{
		Time:        start.Add(time.Hour),
		SolarOffset: 15.8,
		SolarMinute: 600.3,
		Reading:     logic.Reading{Temperature: 22.5, Humidity: 41},
		ReadingOK:   true,
		Queue:       []int{1, 3},
		Gate:        logic.GateState{TempPass: true},
	}
}

func TestNewTracker(t *testing.T) {
	cfg := Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80", Devices: []int{1, 2}}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Manual != logic.ManualIdle {
		t.Errorf("Manual: got %q, want IDLE", snap.Manual)
	}
	if snap.Iterations != 0 {
		t.Errorf("Iterations: got %d, want 0", snap.Iterations)
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.Update(sampleCycle(), logic.TestCounts{Scheduled: 3, Skipped: 1}, logic.ManualIdle, logic.AbortTimeLimit)

	snap := tr.Snapshot()
	if snap.Cycle.SolarOffset != 15.8 {
		t.Errorf("SolarOffset: got %v, want 15.8", snap.Cycle.SolarOffset)
	}
	if len(snap.Cycle.Queue) != 2 || snap.Cycle.Queue[1] != 3 {
		t.Errorf("Queue: got %v", snap.Cycle.Queue)
	}
	if snap.Counts.Scheduled != 3 || snap.Counts.Skipped != 1 {
		t.Errorf("Counts: got %+v", snap.Counts)
	}
	if snap.ManualReason != logic.AbortTimeLimit {
		t.Errorf("ManualReason: got %q", snap.ManualReason)
	}
	if snap.Iterations != 1 || snap.Errors != 0 {
		t.Errorf("Iterations/Errors: got %d/%d, want 1/0", snap.Iterations, snap.Errors)
	}
}

func TestUpdateCountsErrors(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.Update(Cycle{Err: "read clock: i2c timeout"}, logic.TestCounts{}, logic.ManualIdle, logic.AbortNone)
	tr.Update(Cycle{}, logic.TestCounts{}, logic.ManualIdle, logic.AbortNone)

	snap := tr.Snapshot()
	if snap.Iterations != 2 {
		t.Errorf("Iterations: got %d, want 2", snap.Iterations)
	}
	if snap.Errors != 1 {
		t.Errorf("Errors: got %d, want 1", snap.Errors)
	}
	if snap.Cycle.Err != "" {
		t.Errorf("last cycle should be clean, got %q", snap.Cycle.Err)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetManual(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.SetManual(logic.ManualRunning, logic.AbortNone)
	snap := tr.Snapshot()
	if snap.Manual != logic.ManualRunning {
		t.Errorf("Manual: got %q, want RUNNING", snap.Manual)
	}
	if snap.Iterations != 0 {
		t.Errorf("SetManual must not count an iteration, got %d", snap.Iterations)
	}

	tr.SetManual(logic.ManualIdle, logic.AbortTimeLimit)
	snap = tr.Snapshot()
	if snap.Manual != logic.ManualIdle || snap.ManualReason != logic.AbortTimeLimit {
		t.Errorf("got %q/%q, want IDLE/TIME_LIMIT", snap.Manual, snap.ManualReason)
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(start, Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	tr.SetNetwork(&NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"})

	snap := tr.Snapshot()
	if snap.Network == nil {
		t.Fatal("expected non-nil Network")
	}
	if snap.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want %q", snap.Network.IP, "192.168.1.42")
	}
}

func TestTrackerKeepsLatestPerSubject(t *testing.T) {
	tr := NewTracker(start, Config{})

	tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(3), Before: 0.1, After: 0.2, Kind: logic.RecordScheduled})
	tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(3), Before: 0.3, After: 0.4, Kind: logic.RecordNoon})
	tr.WriteMeasurement(logic.Measurement{Subject: logic.ControlSubject(1), Before: 0.5, After: 0.5, Kind: logic.RecordNoon})

	snap := tr.Snapshot()
	if len(snap.Latest) != 2 {
		t.Fatalf("expected 2 subjects, got %d", len(snap.Latest))
	}
	if snap.Latest["EDS3"].Before != 0.3 {
		t.Errorf("EDS3 should hold the newest record, got %+v", snap.Latest["EDS3"])
	}
	if _, ok := snap.Latest["CTRL1"]; !ok {
		t.Error("expected CTRL1 record")
	}
}

func TestTrackerEventHistoryIsCapped(t *testing.T) {
	tr := NewTracker(start, Config{})

	for i := 0; i < maxEvents+5; i++ {
		tr.WriteEvent(start.Add(time.Duration(i)*time.Second), "event")
	}

	snap := tr.Snapshot()
	if len(snap.Events) != maxEvents {
		t.Fatalf("expected %d events, got %d", maxEvents, len(snap.Events))
	}
	if !snap.Events[0].Timestamp.Equal(start.Add(5 * time.Second)) {
		t.Errorf("oldest events should be dropped, first is %v", snap.Events[0].Timestamp)
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(sampleCycle(), logic.TestCounts{Scheduled: 1}, logic.ManualIdle, logic.AbortNone)
	tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(1), Before: 1})

	snap1 := tr.Snapshot()

	tr.Update(Cycle{SolarOffset: 1}, logic.TestCounts{Scheduled: 2}, logic.ManualRunning, logic.AbortNone)
	tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(1), Before: 2})
	tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(2), Before: 2})

	if snap1.Cycle.SolarOffset != 15.8 {
		t.Error("snapshot should be a copy; Cycle was modified")
	}
	if snap1.Counts.Scheduled != 1 {
		t.Error("snapshot should be a copy; Counts were modified")
	}
	if len(snap1.Latest) != 1 || snap1.Latest["EDS1"].Before != 1 {
		t.Error("snapshot should be a copy; Latest was modified")
	}
}

func TestFormatJSON(t *testing.T) {
	snap := Snapshot{
		Cycle:         sampleCycle(),
		Iterations:    42,
		Counts:        logic.TestCounts{Scheduled: 5, Noon: 2, Manual: 1},
		Manual:        logic.ManualIdle,
		Latest:        map[string]logic.Measurement{"CTRL2": {Subject: logic.ControlSubject(2), Before: 0.2, After: 0.21, Kind: logic.RecordScheduled}},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	s := parsed.Status
	if s.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", s.UptimeSeconds)
	}
	if !strings.Contains(s.Uptime, "15 minutes") {
		t.Errorf("Uptime: got %q, want it to mention 15 minutes", s.Uptime)
	}
	if s.Iterations != 42 {
		t.Errorf("Iterations: got %d, want 42", s.Iterations)
	}
	if s.Cycle.SolarOffset != 15.8 || s.Cycle.Temperature != 22.5 {
		t.Errorf("Cycle: got %+v", s.Cycle)
	}
	if !s.Cycle.TempPass || s.Cycle.HumidPass {
		t.Errorf("gate flags: got temp=%v humid=%v", s.Cycle.TempPass, s.Cycle.HumidPass)
	}
	if s.Manual.State != "IDLE" {
		t.Errorf("Manual.State: got %q, want IDLE", s.Manual.State)
	}
	if !s.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if s.Counts.Scheduled != 5 || s.Counts.Noon != 2 || s.Counts.Manual != 1 {
		t.Errorf("Counts: got %+v", s.Counts)
	}
	if len(s.Latest) != 1 || s.Latest[0].ID != -2 {
		t.Errorf("Latest: control ids are negative, got %+v", s.Latest)
	}
	// Event and Reason should be omitted
	if s.Event != "" || s.Reason != "" {
		t.Errorf("expected empty Event/Reason for web format, got %q/%q", s.Event, s.Reason)
	}
}

func TestFormatJSONEmptySnapshot(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	cycle := status["cycle"].(map[string]interface{})
	if q, ok := cycle["queue"].([]interface{}); !ok || len(q) != 0 {
		t.Errorf("queue should be an empty array, got %v", cycle["queue"])
	}
	if _, exists := cycle["timestamp"]; exists {
		t.Error("cycle timestamp should be omitted before the first iteration")
	}
	if status["manual"].(map[string]interface{})["state"] != "UNKNOWN" {
		t.Errorf("manual state: got %v", status["manual"])
	}
}

func TestFormatStatusEvent(t *testing.T) {
	snap := Snapshot{
		Counts:    logic.TestCounts{Scheduled: 3},
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
	if parsed.Status.Counts.Scheduled != 3 {
		t.Errorf("Counts.Scheduled: got %d, want 3", parsed.Status.Counts.Scheduled)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{StartTime: start, Now: start.Add(time.Second)}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(time.Minute),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "FieldNet"},
	}

	var parsed StatusJSON
	json.Unmarshal(FormatJSON(snap), &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.SSID != "FieldNet" {
		t.Errorf("Network.SSID: got %q, want FieldNet", parsed.Status.Network.SSID)
	}
}

func TestFormatEventsNewestFirst(t *testing.T) {
	snap := Snapshot{Events: []Event{
		{Timestamp: start, Message: "first"},
		{Timestamp: start.Add(time.Second), Message: "second"},
	}}

	var parsed []EventJSON
	if err := json.Unmarshal(FormatEvents(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(parsed) != 2 || parsed[0].Message != "second" {
		t.Errorf("unexpected order: %+v", parsed)
	}
}

func TestRegistryExposesState(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Update(sampleCycle(), logic.TestCounts{Scheduled: 4, Noon: 1}, logic.ManualRunning, logic.AbortNone)
	tr.WriteMeasurement(logic.Measurement{Subject: logic.ControlSubject(1), Before: 0.25, After: 0.5})

	families, err := tr.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "," + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			}
		}
	}

	checks := map[string]float64{
		"eds_solar_offset_minutes":                15.8,
		"eds_queue_length":                        2,
		"eds_manual_running":                      1,
		"eds_iterations_total":                    1,
		"eds_tests_total,kind=scheduled":          4,
		"eds_tests_total,kind=noon":               1,
		"eds_scc_amps,phase=after,subject=CTRL1":  0.5,
		"eds_scc_amps,phase=before,subject=CTRL1": 0.25,
	}
	for k, want := range checks {
		got, ok := values[k]
		if !ok {
			t.Errorf("metric %s missing", k)
			continue
		}
		if got != want {
			t.Errorf("%s: got %v, want %v", k, got, want)
		}
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(Cycle{Queue: []int{i}}, logic.TestCounts{Scheduled: i}, logic.ManualIdle, logic.AbortNone)
			tr.WriteMeasurement(logic.Measurement{Subject: logic.DeviceSubject(i%5 + 1)})
			tr.WriteEvent(time.Now(), "tick")
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
			tr.Registry().Gather()
		}
	}()

	wg.Wait()
}
