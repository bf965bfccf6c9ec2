package sensor

import (
	"fmt"
	"math"
	"time"
)

// Simulated is a software sensor family for bench runs and tests. It
// produces a slow sine sweep per axis at a fixed rate, gated by wall-clock
// time so the ready-check behaves like a real device: at most one sample
// per 1/frequency interval.
type Simulated struct {
	id     string
	fields []string
	freq   float64
	phase  float64

	interval time.Duration
	last     time.Time
	now      func() time.Time
	n        uint64
}

// NewSimulated creates a simulated sensor with the given identifier, field
// set, and sample frequency in Hz.
func NewSimulated(index int, fields []string, freq float64) *Simulated {
	return &Simulated{
		id:       fmt.Sprintf("sim_%d", index),
		fields:   fields,
		freq:     freq,
		phase:    float64(index),
		interval: time.Duration(float64(time.Second) / freq),
		now:      time.Now,
	}
}

// Identifier returns the sensor ID.
func (s *Simulated) Identifier() string { return s.id }

// Fields returns the configured column names.
func (s *Simulated) Fields() []string { return s.fields }

// ReportedFrequency returns the configured rate.
func (s *Simulated) ReportedFrequency() float64 { return s.freq }

// Ready reports true once per sample interval.
func (s *Simulated) Ready() (bool, error) {
	now := s.now()
	if now.Sub(s.last) < s.interval {
		return false, nil
	}
	return true, nil
}

// Read produces the next synthetic sample.
func (s *Simulated) Read() ([]int64, error) {
	s.last = s.now()
	s.n++
	values := make([]int64, len(s.fields))
	for i := range values {
		angle := s.phase + float64(s.n)/s.freq + float64(i)
		values[i] = int64(10000 * math.Sin(angle))
	}
	return values, nil
}

// Close is a no-op.
func (s *Simulated) Close() error { return nil }
