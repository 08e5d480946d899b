package mqtt

import "log"

// bufferedMsg stores a serialized MQTT message for replay after reconnection.
type bufferedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// expendable reports whether the message may be evicted ahead of others.
// Event lines go out at QoS 0 and are also kept in the local text log;
// measurement records and retained lifecycle messages are not.
func (m bufferedMsg) expendable() bool {
	return m.qos == 0 && !m.retained
}

// offlineQueue is a bounded FIFO that holds messages while disconnected.
// When full it evicts the oldest expendable message, falling back to the
// oldest message of any kind, so a long outage costs event lines before it
// costs measurement records.
// Not safe for concurrent use; the caller must synchronize.
type offlineQueue struct {
	msgs     []bufferedMsg
	capacity int
	dropped  int // evictions since the last drain
}

func newOfflineQueue(capacity int) *offlineQueue {
	return &offlineQueue{
		msgs:     make([]bufferedMsg, 0, capacity),
		capacity: capacity,
	}
}

func (q *offlineQueue) push(msg bufferedMsg) {
	if len(q.msgs) == q.capacity {
		if q.dropped == 0 {
			log.Printf("mqtt: buffer full (%d messages), dropping events first", q.capacity)
		}
		victim := 0
		for i, m := range q.msgs {
			if m.expendable() {
				victim = i
				break
			}
		}
		q.msgs = append(q.msgs[:victim], q.msgs[victim+1:]...)
		q.dropped++
	}
	q.msgs = append(q.msgs, msg)
}

// drainAll returns every held message, oldest first, and how many were
// evicted since the previous drain.
func (q *offlineQueue) drainAll() ([]bufferedMsg, int) {
	dropped := q.dropped
	q.dropped = 0
	if len(q.msgs) == 0 {
		return nil, dropped
	}
	out := q.msgs
	q.msgs = make([]bufferedMsg, 0, q.capacity)
	return out, dropped
}

func (q *offlineQueue) len() int {
	return len(q.msgs)
}
