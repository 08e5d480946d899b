package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/eds-controller/internal/logic"
)

const namespace = "eds"

// Registry returns the Prometheus registry exposing the tracker's state.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.reg
}

func (t *Tracker) newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()

	t.scc = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scc_amps",
		Help:      "Latest short-circuit current per subject and phase.",
	}, []string{"subject", "phase"})
	reg.MustRegister(t.scc)

	gauge := func(name, help string, f func(s *Snapshot) float64) {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 { return t.read(f) }))
	}
	counter := func(name, help string, labels prometheus.Labels, f func(s *Snapshot) float64) {
		reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return t.read(f) }))
	}

	gauge("solar_offset_minutes", "Solar time minus clock time, in minutes.",
		func(s *Snapshot) float64 { return s.Cycle.SolarOffset })
	gauge("solar_minute", "Solar-corrected minute of the day at the last iteration.",
		func(s *Snapshot) float64 { return s.Cycle.SolarMinute })
	gauge("temperature_celsius", "Last ambient temperature reading.",
		func(s *Snapshot) float64 { return s.Cycle.Reading.Temperature })
	gauge("humidity_percent", "Last relative humidity reading.",
		func(s *Snapshot) float64 { return s.Cycle.Reading.Humidity })
	gauge("queue_length", "Devices due in the last iteration.",
		func(s *Snapshot) float64 { return float64(len(s.Cycle.Queue)) })
	gauge("manual_running", "1 while a manual override run is in progress.",
		func(s *Snapshot) float64 { return boolFloat(s.Manual == logic.ManualRunning) })
	gauge("mqtt_connected", "1 when the MQTT broker connection is up.",
		func(s *Snapshot) float64 { return boolFloat(s.MQTTConnected) })

	counter("iterations_total", "Control loop iterations.", nil,
		func(s *Snapshot) float64 { return float64(s.Iterations) })
	counter("iteration_errors_total", "Control loop iterations that hit an error.", nil,
		func(s *Snapshot) float64 { return float64(s.Errors) })
	counter("tests_total", "Completed tests by kind.", prometheus.Labels{"kind": string(logic.RecordScheduled)},
		func(s *Snapshot) float64 { return float64(s.Counts.Scheduled) })
	counter("tests_total", "Completed tests by kind.", prometheus.Labels{"kind": string(logic.RecordNoon)},
		func(s *Snapshot) float64 { return float64(s.Counts.Noon) })
	counter("tests_total", "Completed tests by kind.", prometheus.Labels{"kind": string(logic.RecordManual)},
		func(s *Snapshot) float64 { return float64(s.Counts.Manual) })
	counter("tests_skipped_total", "Scheduled tests skipped because the environment never passed.", nil,
		func(s *Snapshot) float64 { return float64(s.Counts.Skipped) })
	counter("faults_total", "Test sequences that ended in error.", nil,
		func(s *Snapshot) float64 { return float64(s.Counts.Faults) })

	return reg
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
