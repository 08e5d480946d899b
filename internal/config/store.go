// Package config loads rig parameters into an immutable key/value Store and
// derives the typed Rig used by the controller.
package config

import (
	"fmt"
	"math"
	"sort"

	"github.com/sweeney/eds-controller/internal/logic"
)

// Store is a read-only mapping from parameter name to value. Values are the
// scalar and list kinds produced by YAML decoding.
type Store struct {
	values map[string]any
}

// NewStore copies values into a new Store.
func NewStore(values map[string]any) *Store {
	s := &Store{values: make(map[string]any, len(values))}
	for k, v := range values {
		s.values[k] = v
	}
	return s
}

// Keys returns all parameter names, sorted.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Has reports whether name is set.
func (s *Store) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Pin returns an integral pin number.
func (s *Store) Pin(name string) (int, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("config: missing pin %q", name)
	}
	n, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("config: pin %q: %w", name, err)
	}
	return n, nil
}

// Param returns a numeric parameter.
func (s *Store) Param(name string) (float64, error) {
	v, ok := s.values[name]
	if !ok {
		return 0, fmt.Errorf("config: missing parameter %q", name)
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, fmt.Errorf("config: parameter %q: %w", name, err)
	}
	return f, nil
}

// Bool returns a boolean parameter; missing means false.
func (s *Store) Bool(name string) (bool, error) {
	v, ok := s.values[name]
	if !ok {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("config: parameter %q: expected bool, got %T", name, v)
	}
	return b, nil
}

// IDs returns a list of integers.
func (s *Store) IDs(name string) ([]int, error) {
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("config: missing list %q", name)
	}
	items, err := toList(v)
	if err != nil {
		return nil, fmt.Errorf("config: list %q: %w", name, err)
	}
	out := make([]int, 0, len(items))
	for i, item := range items {
		n, err := toInt(item)
		if err != nil {
			return nil, fmt.Errorf("config: list %q[%d]: %w", name, i, err)
		}
		out = append(out, n)
	}
	return out, nil
}

// Schedule returns a list of [period, hour offset] pairs.
func (s *Store) Schedule(name string) ([]logic.ScheduleEntry, error) {
	v, ok := s.values[name]
	if !ok {
		return nil, fmt.Errorf("config: missing schedule %q", name)
	}
	items, err := toList(v)
	if err != nil {
		return nil, fmt.Errorf("config: schedule %q: %w", name, err)
	}
	out := make([]logic.ScheduleEntry, 0, len(items))
	for i, item := range items {
		pair, err := toList(item)
		if err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("config: schedule %q[%d]: expected [period, hours]", name, i)
		}
		period, err := toInt(pair[0])
		if err != nil {
			return nil, fmt.Errorf("config: schedule %q[%d] period: %w", name, i, err)
		}
		hours, err := toFloat(pair[1])
		if err != nil {
			return nil, fmt.Errorf("config: schedule %q[%d] hours: %w", name, i, err)
		}
		out = append(out, logic.ScheduleEntry{PeriodDays: period, HourOffset: hours})
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}

func toInt(v any) (int, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("expected integer, got %v", f)
	}
	return int(f), nil
}

func toList(v any) ([]any, error) {
	switch l := v.(type) {
	case []any:
		return l, nil
	case [][]any:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, nil
	case []int:
		out := make([]any, len(l))
		for i := range l {
			out[i] = l[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list, got %T", v)
	}
}
