package status

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	Uptime        string       `json:"uptime"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	Iterations    int          `json:"iterations"`
	Errors        int          `json:"iteration_errors"`
	Cycle         CycleJSON    `json:"cycle"`
	Manual        ManualJSON   `json:"manual"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"test_counts"`
	Latest        []RecordJSON `json:"latest,omitempty"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// CycleJSON is the last loop iteration.
type CycleJSON struct {
	Timestamp   string  `json:"timestamp,omitempty"`
	SolarOffset float64 `json:"solar_offset_min"`
	SolarMinute float64 `json:"solar_minute"`
	Temperature float64 `json:"temperature_c"`
	Humidity    float64 `json:"humidity_pct"`
	ReadingOK   bool    `json:"reading_ok"`
	Queue       []int   `json:"queue"`
	TempPass    bool    `json:"temp_pass"`
	HumidPass   bool    `json:"humid_pass"`
	Error       string  `json:"error,omitempty"`
}

// ManualJSON reports the manual override state.
type ManualJSON struct {
	State      string `json:"state"`
	LastReason string `json:"last_reason,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of test counts.
type CountsJSON struct {
	Scheduled int `json:"scheduled"`
	Skipped   int `json:"skipped"`
	Noon      int `json:"noon"`
	Manual    int `json:"manual"`
	Faults    int `json:"faults"`
}

// RecordJSON is the latest record for one subject. ID is signed: control
// channels are negative.
type RecordJSON struct {
	Subject   string  `json:"subject"`
	ID        int     `json:"id"`
	Kind      string  `json:"kind"`
	Timestamp string  `json:"timestamp"`
	Before    float64 `json:"before_a"`
	After     float64 `json:"after_a"`
}

// EventJSON is one event line.
type EventJSON struct {
	Timestamp string `json:"timestamp"`
	Message   string `json:"message"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	HeartbeatMs    int64   `json:"heartbeat_ms"`
	ProcessDelayMs int64   `json:"process_delay_ms"`
	Broker         string  `json:"broker"`
	HTTPAddr       string  `json:"http_addr"`
	DataDir        string  `json:"data_dir"`
	Longitude      float64 `json:"longitude"`
	GMTOffset      float64 `json:"gmt_offset"`
	Devices        []int   `json:"devices"`
	Controls       []int   `json:"controls"`
}

func buildInner(snap Snapshot) StatusInner {
	c := snap.Cycle
	inner := StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		Uptime:        strings.TrimSpace(humanize.RelTime(snap.StartTime, snap.Now, "", "")),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Iterations:    snap.Iterations,
		Errors:        snap.Errors,
		Cycle: CycleJSON{
			SolarOffset: c.SolarOffset,
			SolarMinute: c.SolarMinute,
			Temperature: c.Reading.Temperature,
			Humidity:    c.Reading.Humidity,
			ReadingOK:   c.ReadingOK,
			Queue:       c.Queue,
			TempPass:    c.Gate.TempPass,
			HumidPass:   c.Gate.HumidPass,
			Error:       c.Err,
		},
		Manual: ManualJSON{State: string(snap.Manual), LastReason: string(snap.ManualReason)},
		MQTT:   MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Scheduled: snap.Counts.Scheduled,
			Skipped:   snap.Counts.Skipped,
			Noon:      snap.Counts.Noon,
			Manual:    snap.Counts.Manual,
			Faults:    snap.Counts.Faults,
		},
		Config: ConfigJSON{
			HeartbeatMs:    snap.Config.HeartbeatMs,
			ProcessDelayMs: snap.Config.ProcessDelayMs,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
			DataDir:        snap.Config.DataDir,
			Longitude:      snap.Config.Longitude,
			GMTOffset:      snap.Config.GMTOffset,
			Devices:        snap.Config.Devices,
			Controls:       snap.Config.Controls,
		},
	}
	if inner.Manual.State == "" {
		inner.Manual.State = "UNKNOWN"
	}
	if inner.Cycle.Queue == nil {
		inner.Cycle.Queue = []int{}
	}
	if !c.Time.IsZero() {
		inner.Cycle.Timestamp = c.Time.UTC().Format(time.RFC3339)
	}

	for _, m := range snap.Latest {
		inner.Latest = append(inner.Latest, RecordJSON{
			Subject:   m.Subject.String(),
			ID:        m.Subject.SignedID(),
			Kind:      string(m.Kind),
			Timestamp: m.Timestamp.UTC().Format(time.RFC3339),
			Before:    m.Before,
			After:     m.After,
		})
	}
	sort.Slice(inner.Latest, func(i, j int) bool {
		return inner.Latest[i].Subject < inner.Latest[j].Subject
	})

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatEvents returns the event history as a JSON array, newest first.
func FormatEvents(snap Snapshot) []byte {
	out := make([]EventJSON, 0, len(snap.Events))
	for i := len(snap.Events) - 1; i >= 0; i-- {
		e := snap.Events[i]
		out = append(out, EventJSON{
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
			Message:   e.Message,
		})
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return data
}
