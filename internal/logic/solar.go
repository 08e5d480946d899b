package logic

import (
	"math"
	"time"
)

// SolarNoonMinute is local solar noon in minutes after midnight.
const SolarNoonMinute = 720.0

// MinutesPerDay is the length of the solar-minute circle.
const MinutesPerDay = 1440.0

// MatchTolerance is the half-width, in minutes, of every schedule and
// solar-noon window.
const MatchTolerance = 0.5

// SolarOffset returns the offset in minutes between clock time and local
// solar time (solar = clock + offset) for a site at longitude degrees
// (east positive) in a zone gmtOffset hours from GMT. The result is rounded up
// to the next hundredth of a minute.
//
// Latitude is accepted but not used. When eot is true the equation of time
// for t's day of year is included.
func SolarOffset(gmtOffset float64, t time.Time, longitude, latitude float64, eot bool) float64 {
	meridian := 15 * gmtOffset
	offset := 4 * (longitude - meridian)
	if eot {
		offset += EquationOfTime(t.YearDay())
	}
	return ceilHundredths(offset)
}

// EquationOfTime returns the apparent minus mean solar time, in minutes, for
// the given day of the year.
func EquationOfTime(dayOfYear int) float64 {
	b := (360.0 / 365.0) * float64(dayOfYear-81) * math.Pi / 180
	return 9.87*math.Sin(2*b) - 7.53*math.Cos(b) - 1.5*math.Sin(b)
}

// ceilHundredths rounds x up to two decimals. Binary noise below a millionth
// of a hundredth is discarded first so 15.8 stays 15.8.
func ceilHundredths(x float64) float64 {
	scaled := math.Round(x*100*1e6) / 1e6
	return math.Ceil(scaled) / 100
}

// SolarMinute returns the solar-corrected minute of the day for clock time t,
// wrapped into [0, 1440).
func SolarMinute(t time.Time, offset float64) float64 {
	m := float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60 + offset
	m = math.Mod(m, MinutesPerDay)
	if m < 0 {
		m += MinutesPerDay
	}
	return m
}

// MinuteDistance returns the distance between two minutes of the day going
// the short way round midnight.
func MinuteDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), MinutesPerDay)
	return math.Min(d, MinutesPerDay-d)
}

// Within reports whether minute is inside the inclusive tolerance window
// around target.
func Within(minute, target float64) bool {
	return MinuteDistance(minute, target) <= MatchTolerance
}

// IsSolarNoon reports whether the solar-corrected minute is inside the noon
// window.
func IsSolarNoon(minute float64) bool {
	return Within(minute, SolarNoonMinute)
}
