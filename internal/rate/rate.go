// Package rate computes the worst-case sample budget for a run.
//
// The budget exists to bound buffer pre-allocation and to detect runaway
// counters. It is advisory: it never causes a real sample to be skipped by
// itself. What happens when a sensor actually reaches the budget is a
// scheduler policy ("cap" or "extend").
package rate

import (
	"math"
	"time"
)

// Estimate holds the per-run worst-case sample rate derivation.
type Estimate struct {
	// Frequencies maps sensor ID to its self-reported operating frequency
	// (device units; for the magnetometer family the TMRC readback).
	Frequencies map[string]float64

	// MaxFrequency is the highest reported frequency across all sensors.
	MaxFrequency float64

	// Margin guards against reported/measured frequency mismatch. > 1.
	Margin float64

	// Derating accounts for known per-cycle-count throughput loss;
	// effective rate = reported / Derating.
	Derating float64
}

// New derives an estimate from the reported frequencies of all sensors in
// the run. Computed once per run from device state.
func New(frequencies map[string]float64, margin, derating float64) *Estimate {
	e := &Estimate{
		Frequencies: frequencies,
		Margin:      margin,
		Derating:    derating,
	}
	for _, f := range frequencies {
		if f > e.MaxFrequency {
			e.MaxFrequency = f
		}
	}
	return e
}

// Budget returns the worst-case expected sample count over d:
// ceil(margin * maxFreq / derating * seconds). Every sensor shares the
// same bound, sized to the fastest device.
func (e *Estimate) Budget(d time.Duration) int {
	return WorstCase(e.MaxFrequency, e.Margin, e.Derating, d)
}

// MinInterval returns the minimum inter-sample interval implied by the
// fastest sensor's derated rate. The scheduler's inter-tick delay must
// never exceed this, or samples would be missed by construction.
func (e *Estimate) MinInterval() time.Duration {
	if e.MaxFrequency <= 0 {
		return 0
	}
	persec := e.MaxFrequency * e.Margin / e.Derating
	return time.Duration(float64(time.Second) / persec)
}

// WorstCase computes ceil(margin * freq / derating * seconds) as a sample
// count. A non-positive derating is treated as 1.
func WorstCase(freq, margin, derating float64, d time.Duration) int {
	if freq <= 0 || d <= 0 {
		return 0
	}
	if margin < 1 {
		margin = 1
	}
	if derating <= 0 {
		derating = 1
	}
	// Tolerance keeps binary rounding noise (1.1*150 = 165.00000000000003)
	// from pushing the ceiling one sample too high.
	n := margin * freq / derating * d.Seconds()
	return int(math.Ceil(n - 1e-9))
}
