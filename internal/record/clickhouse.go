package record

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/sweeney/eds-controller/internal/logic"
)

// ClickHouse tables.
const (
	createMeasurementsTable = `
		CREATE TABLE IF NOT EXISTS eds_measurements (
			timestamp DateTime,
			temperature Float64,
			humidity Float64,
			subject_id Int32,
			subject_kind LowCardinality(String),
			before_a Float64,
			after_a Float64,
			kind LowCardinality(String)
		) ENGINE = MergeTree()
		ORDER BY (kind, subject_id, timestamp)
	`
	createEventsTable = `
		CREATE TABLE IF NOT EXISTS eds_events (
			timestamp DateTime,
			message String
		) ENGINE = MergeTree()
		ORDER BY timestamp
	`

	insertMeasurement = `
		INSERT INTO eds_measurements (timestamp, temperature, humidity, subject_id, subject_kind, before_a, after_a, kind)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	insertEvent = `INSERT INTO eds_events (timestamp, message) VALUES (?, ?)`
)

// Insert queue defaults.
const (
	clickHouseQueue   = 512
	clickHouseTimeout = 5 * time.Second
)

type execFunc func(ctx context.Context, query string, args ...any) error

type insert struct {
	what  string
	query string
	args  []any
}

// ClickHouseSink writes records to a ClickHouse database. Inserts are queued
// and run by a background goroutine, so a slow or unreachable server never
// holds up a measurement sequence. When the queue is full new rows are
// dropped and reported as a write error.
type ClickHouseSink struct {
	exec      execFunc
	closeConn func() error
	timeout   time.Duration

	queue  chan insert
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	dropped int
}

// NewClickHouseSink connects, pings and creates the tables.
func NewClickHouseSink(addr, database, username, password string) (*ClickHouseSink, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{addr},
		Auth: clickhouse.Auth{
			Database: database,
			Username: username,
			Password: password,
		},
		DialTimeout: 5 * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}
	for _, ddl := range []string{createMeasurementsTable, createEventsTable} {
		if err := conn.Exec(ctx, ddl); err != nil {
			conn.Close()
			return nil, fmt.Errorf("clickhouse: create table: %w", err)
		}
	}

	log.Printf("clickhouse: connected to %s", addr)
	return newClickHouseSink(conn.Exec, conn.Close, clickHouseTimeout, clickHouseQueue), nil
}

func newClickHouseSink(exec execFunc, closeConn func() error, timeout time.Duration, size int) *ClickHouseSink {
	ctx, cancel := context.WithCancel(context.Background())
	s := &ClickHouseSink{
		exec:      exec,
		closeConn: closeConn,
		timeout:   timeout,
		queue:     make(chan insert, size),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go s.run()
	return s
}

func (s *ClickHouseSink) run() {
	defer close(s.done)
	for ins := range s.queue {
		ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
		err := s.exec(ctx, ins.query, ins.args...)
		cancel()
		if err != nil {
			log.Printf("clickhouse: insert %s: %v", ins.what, err)
		}
	}
}

func (s *ClickHouseSink) enqueue(ins insert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("clickhouse: insert %s: sink closed", ins.what)
	}
	select {
	case s.queue <- ins:
		return nil
	default:
		s.dropped++
		return fmt.Errorf("clickhouse: insert %s: queue full (%d dropped)", ins.what, s.dropped)
	}
}

// WriteMeasurement queues one row.
func (s *ClickHouseSink) WriteMeasurement(m logic.Measurement) error {
	return s.enqueue(insert{
		what:  "measurement",
		query: insertMeasurement,
		args: []any{
			m.Timestamp,
			m.Temperature,
			m.Humidity,
			int32(m.Subject.SignedID()),
			string(m.Subject.Kind),
			m.Before,
			m.After,
			string(m.Kind),
		},
	})
}

// WriteEvent queues one event row.
func (s *ClickHouseSink) WriteEvent(ts time.Time, msg string) error {
	return s.enqueue(insert{what: "event", query: insertEvent, args: []any{ts, msg}})
}

// Dropped returns how many rows were rejected because the queue was full.
func (s *ClickHouseSink) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close flushes queued rows, waiting at most one insert timeout, then closes
// the connection. Rows still pending after that are abandoned.
func (s *ClickHouseSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	select {
	case <-s.done:
	case <-time.After(s.timeout):
		log.Printf("clickhouse: flush timed out, abandoning %d queued rows", len(s.queue))
		s.cancel()
		<-s.done
	}
	s.cancel()
	return s.closeConn()
}
