package config

// Default returns the stock rig parameters. Keys match the on-disk YAML file.
func Default() map[string]any {
	return map[string]any{
		// EDS schedules: [period days, hours from solar noon]
		"SCHEDS1": [][]any{{1, -3}, {1, -2}, {1, -1}},
		"SCHEDS2": [][]any{{1, -3}, {1, -2}},
		"SCHEDS3": [][]any{{1, -2}},
		"SCHEDS4": [][]any{{2, -2}},
		"SCHEDS5": [][]any{{3, -2}},
		"SCHEDS6": [][]any{{1, 0}},

		// relay outputs
		"EDS1": 4,
		"EDS2": 17,
		"EDS3": 6,
		"EDS4": 19,
		"EDS5": 26,
		"EDS6": 27,

		// PV sense relays
		"EDS1PV":  7,
		"EDS2PV":  8,
		"EDS3PV":  12,
		"EDS4PV":  16,
		"EDS5PV":  20,
		"EDS6PV":  21,
		"CTRL1PV": 15,
		"CTRL2PV": 23,

		"EDSIDS":  []any{1, 2, 3, 4, 5},
		"CTRLIDS": []any{1, 2},

		// testing requirements
		"maxTemperatureCelsius": 40,
		"minTemperatureCelsius": 10,
		"maxRelativeHumidity":   60,
		"minRelativeHumidity":   20,
		"testDurationSeconds":   30,
		"testWindowSeconds":     2700,
		"gatePollSeconds":       1,

		// indicators/switches
		"outPinLEDGreen":         5,
		"outPinLEDRed":           13,
		"inPinManualActivate":    22,
		"POWER":                  18,
		"manualEDSNumber":        5,
		"manualTimeLimitSeconds": 300,
		"manualPollSeconds":      0.1,
		"switchDebounceMillis":   20,
		"solarChargerEDSNumber":  6,

		// SCC meter
		"ADC":               25,
		"adcAddress":        0x48,
		"shuntOhms":         0.1,
		"senseSettleMillis": 200,

		// location data
		"degLongitude":   -71.05,
		"degLatitude":    42.36,
		"offsetGMT":      -5,
		"equationOfTime": false,

		// loop
		"processDelaySeconds": 1,
		"heartbeatMinutes":    15,
		"relayActiveLow":      false,
	}
}
