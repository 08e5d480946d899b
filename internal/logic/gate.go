package logic

// Bounds are the inclusive environmental acceptance limits.
type Bounds struct {
	MinTemperature float64
	MaxTemperature float64
	MinHumidity    float64
	MaxHumidity    float64
}

// TemperatureOK reports whether the reading's temperature is in bounds.
func (b Bounds) TemperatureOK(r Reading) bool {
	return r.Temperature >= b.MinTemperature && r.Temperature <= b.MaxTemperature
}

// HumidityOK reports whether the reading's humidity is in bounds.
func (b Bounds) HumidityOK(r Reading) bool {
	return r.Humidity >= b.MinHumidity && r.Humidity <= b.MaxHumidity
}

// GateState latches each environmental condition independently. Once a
// condition passes it stays passed for the rest of the cycle.
type GateState struct {
	TempPass  bool
	HumidPass bool
}

// Observe folds a reading into the state and returns whether both conditions
// have now passed.
func (g *GateState) Observe(b Bounds, r Reading) bool {
	if b.TemperatureOK(r) {
		g.TempPass = true
	}
	if b.HumidityOK(r) {
		g.HumidPass = true
	}
	return g.Pass()
}

// Pass reports whether both conditions have passed.
func (g GateState) Pass() bool {
	return g.TempPass && g.HumidPass
}
