// Package config provides configuration defaults and utilities
// for the fieldcap application.
//
// This package defines all configurable constants with documented defaults.
// Users can override these values via config.yaml or command-line flags.
package config

import "time"

// =============================================================================
// Run Defaults
// =============================================================================

const (
	// DefaultOutputDir is the root directory for run directories.
	// Override via config: output_dir
	DefaultOutputDir = "fieldcap-data"

	// DefaultSegmentCeilingSec caps the per-segment duration regardless of
	// what the operator requests. Bounds worst-case single-segment memory.
	// Override via config: segment_ceiling_sec
	DefaultSegmentCeilingSec = 10800

	// DefaultRunDirPrefixWidth is the zero-padded width of the numeric
	// prefix on run directory names (001_20240101_000000_3600).
	DefaultRunDirPrefixWidth = 3

	// DefaultBusNumber is the I2C bus the sensors hang off (/dev/i2c-1 on
	// Raspberry Pi class hardware).
	// Override via config: bus
	DefaultBusNumber = 1

	// DefaultDurationSec is the total acquisition time.
	// Override via config: duration_sec
	DefaultDurationSec = 3600

	// DefaultSegmentSec is the target per-segment duration.
	// Override via config: segment_sec
	DefaultSegmentSec = 3600
)

// =============================================================================
// Rate Estimator Defaults
// =============================================================================

const (
	// DefaultMarginFactor guards against reported/measured frequency
	// mismatch when sizing sample buffers. Must be > 1.
	// Override via config: rate.margin_factor
	DefaultMarginFactor = 1.1

	// DefaultDeratingFactor accounts for the per-cycle-count throughput
	// loss of the magnetometer family: at the default cycle count the
	// devices deliver roughly a third of the nominal rate.
	// Override via config: rate.derating_factor
	DefaultDeratingFactor = 3.0

	// DefaultCapPolicy controls what happens when a sensor would exceed
	// its worst-case sample budget within one segment.
	// "cap" drops excess samples with a logged warning (hard memory
	// ceiling); "extend" grows the budget instead.
	// Override via config: rate.cap_policy
	DefaultCapPolicy = "cap"
)

// =============================================================================
// Scheduler Defaults
// =============================================================================

const (
	// DefaultTickDelay is the pause between round-robin passes, inserted
	// to avoid saturating the bus. Validation clamps it below the minimum
	// inter-sample interval implied by the fastest sensor.
	// Override via config: scheduler.tick_delay_ms
	DefaultTickDelay = time.Millisecond

	// DefaultRotateMargin is how close to the run deadline a segment is
	// allowed to rotate. Inside this window the final partial segment is
	// left for the end-of-run drain instead.
	// Override via config: scheduler.rotate_margin_ms
	DefaultRotateMargin = 250 * time.Millisecond

	// DefaultProgressEvery is how many samples between progress log lines
	// per sensor.
	// Override via config: scheduler.progress_every
	DefaultProgressEvery = 300
)

// =============================================================================
// Archive Defaults
// =============================================================================

const (
	// DefaultBatchThreshold is the backlog size above which an archive
	// batch is dispatched. At four sensors and hourly segments this
	// corresponds to a few hours of output per batch.
	// Override via config: archive.batch_threshold
	DefaultBatchThreshold = 16

	// DefaultArchiveWorkers is the per-file compression concurrency used
	// by the archiver process.
	// Override via flag: fieldcap-archive -workers
	DefaultArchiveWorkers = 4

	// DefaultArchiverCommand is the command launched to archive a
	// manifest. The manifest path (and optional archive path) are
	// appended as arguments.
	// Override via config: archive.command
	DefaultArchiverCommand = "fieldcap-archive"
)

// =============================================================================
// Sensor Defaults
// =============================================================================

const (
	// DefaultFrequencyCode is the TMRC register value programmed into the
	// magnetometer family at launch (0x96 selects the ~150 Hz update band).
	// Override via config: sensors[].frequency_code
	DefaultFrequencyCode = 0x96

	// DefaultCycleCount is the per-axis cycle count programmed at launch.
	// Higher counts trade sample rate for resolution.
	// Override via config: sensors[].cycle_count
	DefaultCycleCount = 800

	// DefaultThermometerFrequency is the effective sample rate of the
	// temperature family, which converts continuously at a fixed rate and
	// has no frequency register to read back.
	DefaultThermometerFrequency = 4.0
)
