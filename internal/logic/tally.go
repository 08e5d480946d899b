package logic

import "time"

// TestCounts tracks how many tests of each kind ran since startup.
type TestCounts struct {
	Scheduled int
	Skipped   int // environmental gate timeouts
	Noon      int
	Manual    int
	Faults    int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    TestCounts
}

// Tally accumulates test counts and decides when a heartbeat is due.
type Tally struct {
	startTime     time.Time
	counts        TestCounts
	lastHeartbeat time.Time
}

// NewTally creates a Tally. The startTime is used for calculating uptime in
// heartbeat events.
func NewTally(startTime time.Time) *Tally {
	return &Tally{
		startTime:     startTime,
		lastHeartbeat: startTime,
	}
}

// Count increments the counter for a completed record kind.
func (t *Tally) Count(kind RecordKind) {
	switch kind {
	case RecordScheduled:
		t.counts.Scheduled++
	case RecordNoon:
		t.counts.Noon++
	case RecordManual:
		t.counts.Manual++
	}
}

// Skip counts a test skipped on environmental timeout.
func (t *Tally) Skip() { t.counts.Skipped++ }

// Fault counts a sequence that ended in error.
func (t *Tally) Fault() { t.counts.Faults++ }

// Counts returns a copy of the current counts.
func (t *Tally) Counts() TestCounts { return t.counts }

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if the interval has not elapsed, or
// if interval is <= 0 (disabled).
func (t *Tally) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if now.Sub(t.lastHeartbeat) < interval {
		return nil
	}

	t.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(t.startTime),
		Counts:    t.counts,
	}
}
