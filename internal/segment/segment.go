// Package segment defines the sample and segment types flowing through the
// acquisition pipeline, and the per-sensor rotation controller that bounds
// how long a segment stays in memory.
//
// A segment is owned exclusively by the acquisition loop until it closes;
// Close hands the complete, immutable segment to the caller and immediately
// opens a fresh one so the sensor never lacks an open segment mid-run. The
// per-sensor sample counter continues across segment boundaries: counters
// are per sensor per run, not per file.
package segment

import (
	"time"
)

// Sample is a single measurement taken from one sensor.
// Immutable once produced.
type Sample struct {
	// Timestamp is wall-clock Unix seconds with fractional precision.
	Timestamp float64

	// Counter is the per-sensor-run sequence number. It advances only on
	// successful reads and is never reset within a run.
	Counter uint64

	// Values holds the raw signed device readings, one per field
	// (three axis values for a magnetometer, one scalar for a
	// thermometer). Stored as integers so no precision is lost.
	Values []int64
}

// Segment is a bounded-duration accumulation of samples for one sensor,
// destined for exactly one output file.
type Segment struct {
	// SensorID identifies the producing sensor (e.g. "mag_0x20").
	SensorID string

	// Fields names the value columns in order (e.g. X, Y, Z).
	Fields []string

	// Start is the wall-clock segment start time.
	Start time.Time

	// Target is the intended segment duration. The final segment of a run
	// may cover less.
	Target time.Duration

	// Samples in arrival order, which is also counter order.
	Samples []Sample
}

// Duration returns the wall-clock span covered so far relative to now.
func (s *Segment) Duration(now time.Time) time.Duration {
	return now.Sub(s.Start)
}

// Len returns the number of samples accumulated.
func (s *Segment) Len() int {
	return len(s.Samples)
}

// =============================================================================
// Buffer (rotation controller)
// =============================================================================

// Buffer owns the single open segment for one sensor and decides when it
// rotates. Not safe for concurrent use; the acquisition loop is the sole
// owner until a closed segment is handed off.
type Buffer struct {
	sensorID string
	fields   []string
	target   time.Duration
	budget   int

	seg     *Segment
	counter uint64
	closed  uint64 // segments closed so far, for logging
}

// NewBuffer creates a rotation controller for one sensor. budget is the
// worst-case per-segment sample bound used for pre-allocation; it is
// advisory and does not by itself reject samples.
func NewBuffer(sensorID string, fields []string, target time.Duration, budget int) *Buffer {
	return &Buffer{
		sensorID: sensorID,
		fields:   fields,
		target:   target,
		budget:   budget,
	}
}

// Open starts the first segment of the run. Must be called once before
// Append; subsequent segments open automatically on Close.
func (b *Buffer) Open(now time.Time) {
	b.seg = b.newSegment(now)
}

// Append records one successful reading and advances the counter.
func (b *Buffer) Append(timestamp float64, values []int64) {
	b.seg.Samples = append(b.seg.Samples, Sample{
		Timestamp: timestamp,
		Counter:   b.counter,
		Values:    values,
	})
	b.counter++
}

// Len returns the number of samples in the open segment.
func (b *Buffer) Len() int {
	if b.seg == nil {
		return 0
	}
	return len(b.seg.Samples)
}

// AtBudget returns true once the open segment has reached the worst-case
// sample bound. The intake policy for this condition lives in the scheduler.
func (b *Buffer) AtBudget() bool {
	return b.seg != nil && len(b.seg.Samples) >= b.budget
}

// ExtendBudget grows the advisory bound by the original budget. Used by the
// "extend" cap policy.
func (b *Buffer) ExtendBudget() int {
	b.budget += b.budget
	return b.budget
}

// Budget returns the current per-segment sample bound.
func (b *Buffer) Budget() int {
	return b.budget
}

// Due returns true when the open segment has covered its target duration.
func (b *Buffer) Due(now time.Time) bool {
	return b.seg != nil && now.Sub(b.seg.Start) >= b.target
}

// Counter returns the next counter value to be assigned.
func (b *Buffer) Counter() uint64 {
	return b.counter
}

// Segments returns the number of segments closed so far.
func (b *Buffer) Segments() uint64 {
	return b.closed
}

// SensorID returns the owning sensor's identifier.
func (b *Buffer) SensorID() string {
	return b.sensorID
}

// Close transfers ownership of the open segment to the caller and opens a
// fresh one starting at now. The counter continues from where the closed
// segment left off.
func (b *Buffer) Close(now time.Time) *Segment {
	seg := b.seg
	b.seg = b.newSegment(now)
	b.closed++
	return seg
}

// CloseFinal transfers ownership of the open segment without opening a
// replacement. Used during the end-of-run drain.
func (b *Buffer) CloseFinal() *Segment {
	seg := b.seg
	b.seg = nil
	if seg != nil {
		b.closed++
	}
	return seg
}

func (b *Buffer) newSegment(now time.Time) *Segment {
	return &Segment{
		SensorID: b.sensorID,
		Fields:   b.fields,
		Start:    now,
		Target:   b.target,
		Samples:  make([]Sample, 0, b.budget),
	}
}
