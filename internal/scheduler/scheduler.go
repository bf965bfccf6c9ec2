// Package scheduler runs the acquisition loop: a single cooperative
// round-robin pass over all attached sensors, polling each for readiness
// and appending samples into per-sensor segment buffers. Segment rotation,
// persistence, and archive dispatch all happen inline on the loop, so no
// two components ever touch a buffer concurrently.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/governor"
	"github.com/fieldcap/fieldcap/internal/logging"
	"github.com/fieldcap/fieldcap/internal/segment"
	"github.com/fieldcap/fieldcap/internal/sensor"
)

// ===== Collaborator contracts =====

// Persister writes a closed segment to durable storage and returns the
// path of the file it produced.
type Persister interface {
	Write(seg *segment.Segment) (string, error)
}

// Dispatcher accumulates persisted file paths and hands batches to the
// archiver. Drain flushes whatever remains at end of run.
type Dispatcher interface {
	Add(path string)
	Drain()
}

// Reclaimer forces memory reclamation between segments.
type Reclaimer interface {
	Reclaim() governor.Usage
}

// ===== Cap policy =====

// CapPolicy decides what happens when a segment buffer reaches its
// worst-case sample budget before its target duration elapses.
type CapPolicy string

const (
	// CapPolicyDrop discards further samples for the segment and logs a
	// warning. The budget is a worst-case bound, so reaching it means the
	// sensor produced more than margin x reported rate.
	CapPolicyDrop CapPolicy = "cap"

	// CapPolicyExtend doubles the segment budget and keeps sampling.
	CapPolicyExtend CapPolicy = "extend"
)

// ===== Scheduler =====

// Config carries the run-level acquisition parameters.
type Config struct {
	// Duration is the total acquisition time.
	Duration time.Duration

	// TickDelay is the pause between round-robin passes.
	TickDelay time.Duration

	// RotateMargin suppresses rotation when the run deadline is this
	// close; the final partial segment closes at the end-of-run drain
	// instead of producing a near-empty trailing file.
	RotateMargin time.Duration

	// ProgressEvery logs a per-sensor progress line every N samples.
	// Zero disables progress logging.
	ProgressEvery int

	// CapPolicy handles budget exhaustion. Defaults to CapPolicyDrop.
	CapPolicy CapPolicy

	// Clock defaults to the system clock.
	Clock Clock
}

// slot is the per-sensor loop state. Slots are never removed mid-run: an
// unreachable sensor keeps its place in the rotation and keeps producing
// (empty) segments, so the run's file set stays predictable.
type slot struct {
	adapter sensor.Adapter
	buf     *segment.Buffer
	log     *slog.Logger

	readFailures uint64
	dropped      uint64
	capWarned    bool
	latency      *ddsketch.DDSketch
}

// SensorStats summarizes one sensor's run.
type SensorStats struct {
	SensorID     string
	Samples      uint64
	Segments     uint64
	ReadFailures uint64
	Dropped      uint64
}

// Scheduler drives acquisition for a fixed set of sensors.
type Scheduler struct {
	cfg        Config
	clock      Clock
	persister  Persister
	dispatcher Dispatcher
	reclaimer  Reclaimer
	log        *slog.Logger

	slots []*slot
}

// New builds a scheduler over sensor adapters and their segment buffers.
// The two slices are parallel; adapters[i] feeds buffers[i].
func New(cfg Config, adapters []sensor.Adapter, buffers []*segment.Buffer, p Persister, d Dispatcher, r Reclaimer) *Scheduler {
	clk := cfg.Clock
	if clk == nil {
		clk = RealClock()
	}
	if cfg.CapPolicy == "" {
		cfg.CapPolicy = CapPolicyDrop
	}
	s := &Scheduler{
		cfg:        cfg,
		clock:      clk,
		persister:  p,
		dispatcher: d,
		reclaimer:  r,
		log:        logging.Component("scheduler"),
	}
	for i, a := range adapters {
		s.slots = append(s.slots, &slot{
			adapter: a,
			buf:     buffers[i],
			log:     s.log.With("sensor", a.Identifier()),
			latency: newLatencySketch(),
		})
	}
	return s
}

func newLatencySketch() *ddsketch.DDSketch {
	sk, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil
	}
	return sk
}

// Run executes the acquisition loop until the configured duration elapses
// or ctx is cancelled. Either way every open segment is closed, persisted,
// and queued for dispatch before Run returns.
func (s *Scheduler) Run(ctx context.Context) ([]SensorStats, error) {
	start := s.clock.Now()
	deadline := start.Add(s.cfg.Duration)
	for _, sl := range s.slots {
		sl.buf.Open(start)
	}

	s.log.Info("acquisition started",
		"sensors", len(s.slots),
		"duration", s.cfg.Duration,
		"deadline", deadline.UTC().Format(time.RFC3339))

	for {
		now := s.clock.Now()
		if !now.Before(deadline) {
			break
		}
		if err := ctx.Err(); err != nil {
			s.log.Warn("acquisition interrupted", "elapsed", now.Sub(start))
			break
		}
		for _, sl := range s.slots {
			s.tick(sl, now, deadline)
		}
		s.clock.Sleep(s.cfg.TickDelay)
	}

	s.drain()
	s.dispatcher.Drain()

	stats := make([]SensorStats, 0, len(s.slots))
	for _, sl := range s.slots {
		stats = append(stats, SensorStats{
			SensorID:     sl.buf.SensorID(),
			Samples:      sl.buf.Counter(),
			Segments:     sl.buf.Segments(),
			ReadFailures: sl.readFailures,
			Dropped:      sl.dropped,
		})
	}
	s.log.Info("acquisition finished", "elapsed", s.clock.Now().Sub(start))
	return stats, ctx.Err()
}

// tick performs one poll of one sensor: rotate if the segment is due,
// check readiness, read, append.
func (s *Scheduler) tick(sl *slot, now time.Time, deadline time.Time) {
	if sl.buf.Due(now) && deadline.Sub(now) > s.cfg.RotateMargin {
		s.rotate(sl, now)
	}

	ready, err := sl.adapter.Ready()
	if err != nil {
		s.readFailed(sl, err)
		return
	}
	if !ready {
		return
	}

	if sl.buf.AtBudget() {
		switch s.cfg.CapPolicy {
		case CapPolicyExtend:
			sl.buf.ExtendBudget()
			sl.log.Warn("segment budget extended", "budget", sl.buf.Budget())
		default:
			// The ready sample stays on the device; it is not fetched.
			sl.dropped++
			if !sl.capWarned {
				sl.log.Warn("segment budget reached, dropping samples",
					"budget", sl.buf.Budget())
				sl.capWarned = true
			}
			return
		}
	}

	t0 := s.clock.Now()
	values, err := sl.adapter.Read()
	if err != nil {
		s.readFailed(sl, err)
		return
	}
	if sl.latency != nil {
		_ = sl.latency.Add(s.clock.Now().Sub(t0).Seconds())
	}

	ts := float64(now.UnixNano()) / float64(time.Second)
	sl.buf.Append(ts, values)

	if s.cfg.ProgressEvery > 0 && sl.buf.Counter()%uint64(s.cfg.ProgressEvery) == 0 {
		sl.log.Info("progress", "samples", sl.buf.Counter(), "segment_len", sl.buf.Len())
	}
}

func (s *Scheduler) readFailed(sl *slot, err error) {
	sl.readFailures++
	// Log the first few failures at warn, then sample to avoid flooding
	// the run log when a sensor goes permanently quiet.
	if sl.readFailures <= 3 || sl.readFailures%1000 == 0 {
		sl.log.Warn("sensor read failed",
			"err", err,
			"failures", sl.readFailures,
			"transient", errors.IsTransient(err))
	}
}

// rotate closes the current segment, persists it, and opens the next one.
func (s *Scheduler) rotate(sl *slot, now time.Time) {
	seg := sl.buf.Close(now)
	sl.capWarned = false
	s.persist(sl, seg)
}

// drain closes every remaining segment at end of run. Empty segments are
// persisted too: a sensor that produced nothing still leaves a complete,
// readable record of the interval it covered.
func (s *Scheduler) drain() {
	for _, sl := range s.slots {
		seg := sl.buf.CloseFinal()
		if seg == nil {
			continue
		}
		s.persist(sl, seg)
	}
}

// persist writes a closed segment and queues the resulting file for
// archive dispatch. Storage failures are contained: the segment is lost
// but the run continues.
func (s *Scheduler) persist(sl *slot, seg *segment.Segment) {
	path, err := s.persister.Write(seg)
	if err != nil {
		sl.log.Error("segment write failed", "err", err, "samples", len(seg.Samples))
	} else {
		sl.log.Info("segment written",
			"path", path,
			"samples", len(seg.Samples),
			"read_ms_p50", s.quantile(sl, 0.50),
			"read_ms_p95", s.quantile(sl, 0.95),
			"read_ms_p99", s.quantile(sl, 0.99))
		s.dispatcher.Add(path)
	}
	sl.latency = newLatencySketch()
	if s.reclaimer != nil {
		s.reclaimer.Reclaim()
	}
}

func (s *Scheduler) quantile(sl *slot, q float64) float64 {
	if sl.latency == nil || sl.latency.GetCount() == 0 {
		return 0
	}
	v, err := sl.latency.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return v * 1000
}
