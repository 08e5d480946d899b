package logic

import (
	"fmt"
	"sort"
	"time"
)

// ScheduleEntry is one activation slot. PeriodDays is the repeat interval in
// days; HourOffset is the slot position in hours relative to solar noon.
type ScheduleEntry struct {
	PeriodDays int
	HourOffset float64
}

// TargetMinute returns the solar minute of the day the entry fires at.
func (e ScheduleEntry) TargetMinute() float64 {
	return SolarNoonMinute + 60*e.HourOffset
}

// ActiveOn reports whether the entry is scheduled on the given day index
// (days since 1970-01-01).
func (e ScheduleEntry) ActiveOn(day int) bool {
	if e.PeriodDays <= 1 {
		return true
	}
	return day%e.PeriodDays == 0
}

// DayIndex returns the number of calendar days between 1970-01-01 and t's
// date in t's location.
func DayIndex(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// Slot identifies one occurrence of a schedule entry.
type Slot struct {
	DeviceID int
	Day      int
	Target   float64
}

// DueSlot returns the slot the device is due for at the given solar minute on
// day, if any.
func DueSlot(dev Device, day int, minute float64) (Slot, bool) {
	for _, e := range dev.Schedules {
		if !e.ActiveOn(day) {
			continue
		}
		if Within(minute, e.TargetMinute()) {
			return Slot{DeviceID: dev.ID, Day: day, Target: e.TargetMinute()}, true
		}
	}
	return Slot{}, false
}

// IsDue reports whether dev has a schedule entry within tolerance of the
// solar-corrected time for now.
func IsDue(dev Device, now time.Time, solarOffset float64) bool {
	_, ok := DueSlot(dev, DayIndex(now), SolarMinute(now, solarOffset))
	return ok
}

// DueQueue returns the slots of all devices due at now, ordered by device id.
// Slots already present in fired are skipped.
func DueQueue(devices []Device, now time.Time, solarOffset float64, fired *SlotLog) []Slot {
	day := DayIndex(now)
	minute := SolarMinute(now, solarOffset)

	var queue []Slot
	for _, dev := range devices {
		slot, ok := DueSlot(dev, day, minute)
		if !ok {
			continue
		}
		if fired != nil && fired.Has(slot) {
			continue
		}
		queue = append(queue, slot)
	}
	sort.Slice(queue, func(i, j int) bool {
		return queue[i].DeviceID < queue[j].DeviceID
	})
	return queue
}

// SlotLog remembers slots that have already run so a window spanning several
// loop iterations fires once. Entries older than the current day are pruned.
type SlotLog struct {
	seen map[Slot]struct{}
}

// NewSlotLog returns an empty SlotLog.
func NewSlotLog() *SlotLog {
	return &SlotLog{seen: make(map[Slot]struct{})}
}

// Has reports whether the slot was marked.
func (l *SlotLog) Has(s Slot) bool {
	_, ok := l.seen[s]
	return ok
}

// Mark records the slot and drops slots from earlier days.
func (l *SlotLog) Mark(s Slot) {
	for k := range l.seen {
		if k.Day < s.Day {
			delete(l.seen, k)
		}
	}
	l.seen[s] = struct{}{}
}

// Len returns the number of remembered slots.
func (l *SlotLog) Len() int {
	return len(l.seen)
}

// ValidateSchedules checks that every entry targets a minute of the solar
// day and that no two entries of the device fall within the environmental
// gating window of each other.
func ValidateSchedules(dev Device, window time.Duration) error {
	for i, e := range dev.Schedules {
		if m := e.TargetMinute(); m < 0 || m >= MinutesPerDay {
			return fmt.Errorf("EDS%d: schedule entry %d targets solar minute %g, outside the day", dev.ID, i, m)
		}
	}
	for i := 0; i < len(dev.Schedules); i++ {
		for j := i + 1; j < len(dev.Schedules); j++ {
			a, b := dev.Schedules[i], dev.Schedules[j]
			gap := MinuteDistance(a.TargetMinute(), b.TargetMinute()) * float64(time.Minute)
			if gap <= float64(window) {
				return fmt.Errorf("EDS%d: schedule entries %d and %d are %v apart, inside the %v test window",
					dev.ID, i, j, time.Duration(gap), window)
			}
		}
	}
	return nil
}
