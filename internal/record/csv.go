package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sweeney/eds-controller/internal/logic"
)

// File names inside the data directory.
const (
	TestingFile = "testing_data.csv"
	NoonFile    = "noon_data.csv"
	LogFile     = "log.txt"
)

var csvHeader = []string{"timestamp", "temperature_c", "humidity_pct", "id", "before_a", "after_a", "kind"}

// CSVSink appends records to CSV files and events to a text log. Scheduled
// and manual records share the testing file; noon records have their own.
// Every write is flushed and synced. Not safe for concurrent use.
type CSVSink struct {
	dir     string
	testing *csvFile
	noon    *csvFile
	logf    *os.File
}

type csvFile struct {
	f *os.File
	w *csv.Writer
}

// NewCSVSink opens (creating if needed) the data files in dir.
func NewCSVSink(dir string) (*CSVSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create data dir: %w", err)
	}
	testing, err := openCSV(filepath.Join(dir, TestingFile))
	if err != nil {
		return nil, err
	}
	noon, err := openCSV(filepath.Join(dir, NoonFile))
	if err != nil {
		testing.f.Close()
		return nil, err
	}
	logf, err := os.OpenFile(filepath.Join(dir, LogFile), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		testing.f.Close()
		noon.f.Close()
		return nil, fmt.Errorf("csv: open log: %w", err)
	}
	return &CSVSink{dir: dir, testing: testing, noon: noon, logf: logf}, nil
}

func openCSV(path string) (*csvFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csv: stat %s: %w", path, err)
	}
	cf := &csvFile{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := cf.write(csvHeader); err != nil {
			f.Close()
			return nil, err
		}
	}
	return cf, nil
}

func (c *csvFile) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("csv: write: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("csv: flush: %w", err)
	}
	return c.f.Sync()
}

// WriteMeasurement appends one row.
func (s *CSVSink) WriteMeasurement(m logic.Measurement) error {
	target := s.testing
	if m.Kind == logic.RecordNoon {
		target = s.noon
	}
	return target.write(measurementRow(m))
}

func measurementRow(m logic.Measurement) []string {
	return []string{
		m.Timestamp.Format(time.RFC3339),
		strconv.FormatFloat(m.Temperature, 'f', 1, 64),
		strconv.FormatFloat(m.Humidity, 'f', 1, 64),
		strconv.Itoa(m.Subject.SignedID()),
		strconv.FormatFloat(m.Before, 'f', 6, 64),
		strconv.FormatFloat(m.After, 'f', 6, 64),
		string(m.Kind),
	}
}

// WriteEvent appends "M/D/YYYY H:M:S message" to the text log.
func (s *CSVSink) WriteEvent(ts time.Time, msg string) error {
	line := fmt.Sprintf("%d/%d/%d %d:%02d:%02d %s\n",
		int(ts.Month()), ts.Day(), ts.Year(), ts.Hour(), ts.Minute(), ts.Second(), msg)
	if _, err := s.logf.WriteString(line); err != nil {
		return fmt.Errorf("csv: write log: %w", err)
	}
	return s.logf.Sync()
}

// Close closes all files.
func (s *CSVSink) Close() error {
	return errors.Join(s.testing.f.Close(), s.noon.f.Close(), s.logf.Close())
}
