// Package loader reads and validates the acquisition run configuration.
package loader

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fieldcap/fieldcap/config"
	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/storage"
)

// Sensor family names accepted in configuration.
const (
	FamilyMagnetometer = "rm3100"
	FamilyThermometer  = "mcp9808"
	FamilySimulated    = "sim"
)

// SensorConfig describes one sensor to attach.
type SensorConfig struct {
	// Family selects the adapter: rm3100, mcp9808, or sim.
	Family string `yaml:"family"`

	// Address is the device bus address (e.g. 0x20). Ignored for sim.
	Address uint16 `yaml:"address"`

	// FrequencyCode is the RM3100 update-rate register value. Zero selects
	// the default. Ignored for other families.
	FrequencyCode uint8 `yaml:"frequency_code"`

	// CycleCount is the RM3100 per-axis cycle count. Zero selects the
	// default. Ignored for other families.
	CycleCount uint16 `yaml:"cycle_count"`

	// Frequency is the expected sample rate in Hz for mcp9808 and sim
	// sensors, which do not report one. Zero selects the default.
	Frequency float64 `yaml:"frequency"`
}

// RateConfig tunes the worst-case sample budget estimator.
type RateConfig struct {
	MarginFactor   float64 `yaml:"margin_factor"`
	DeratingFactor float64 `yaml:"derating_factor"`
	CapPolicy      string  `yaml:"cap_policy"`
}

// SchedulerConfig tunes the acquisition loop.
type SchedulerConfig struct {
	TickDelayMs    int `yaml:"tick_delay_ms"`
	RotateMarginMs int `yaml:"rotate_margin_ms"`
	ProgressEvery  int `yaml:"progress_every"`
}

// ArchiveConfig tunes archive dispatch.
type ArchiveConfig struct {
	// BatchThreshold is the backlog size above which a dispatch fires.
	BatchThreshold int `yaml:"batch_threshold"`

	// Command is the archiver binary to launch. Resolved via PATH if not
	// absolute.
	Command string `yaml:"command"`

	// Bundle selects single-archive batch mode instead of per-file
	// compression.
	Bundle bool `yaml:"bundle"`

	// Workers bounds the archiver's compression concurrency.
	Workers int `yaml:"workers"`
}

// LogConfig tunes run logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full run configuration.
type Config struct {
	// Bus is the I2C bus number (/dev/i2c-N).
	Bus int `yaml:"bus"`

	// DurationSec is the total acquisition time in seconds.
	DurationSec int `yaml:"duration_sec"`

	// SegmentSec is the target segment duration in seconds. Values above
	// the segment ceiling are clamped during validation.
	SegmentSec int `yaml:"segment_sec"`

	// OutputDir is the root directory for run output.
	OutputDir string `yaml:"output_dir"`

	// Encoding selects the segment file format: tabular or binary.
	Encoding string `yaml:"encoding"`

	Rate      RateConfig      `yaml:"rate"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Log       LogConfig       `yaml:"log"`

	Sensors []SensorConfig `yaml:"sensors"`
}

// DefaultConfig returns a configuration with every tunable at its default.
// The sensor list is empty; callers add sensors from config or flags.
func DefaultConfig() *Config {
	return &Config{
		Bus:         config.DefaultBusNumber,
		DurationSec: config.DefaultDurationSec,
		SegmentSec:  config.DefaultSegmentSec,
		OutputDir:   config.DefaultOutputDir,
		Encoding:    storage.EncodingTabular.String(),
		Rate: RateConfig{
			MarginFactor:   config.DefaultMarginFactor,
			DeratingFactor: config.DefaultDeratingFactor,
			CapPolicy:      config.DefaultCapPolicy,
		},
		Scheduler: SchedulerConfig{
			TickDelayMs:    int(config.DefaultTickDelay / time.Millisecond),
			RotateMarginMs: int(config.DefaultRotateMargin / time.Millisecond),
			ProgressEvery:  config.DefaultProgressEvery,
		},
		Archive: ArchiveConfig{
			BatchThreshold: config.DefaultBatchThreshold,
			Command:        config.DefaultArchiverCommand,
			Workers:        config.DefaultArchiveWorkers,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file over the defaults and validates it.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidConfig, "parse config %s: %v", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Duration returns the run duration.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationSec) * time.Second
}

// SegmentTarget returns the target segment duration.
func (c *Config) SegmentTarget() time.Duration {
	return time.Duration(c.SegmentSec) * time.Second
}

// Validate checks the configuration and clamps soft limits. All problems
// are collected into one ValidationErrors so a bad file reports everything
// wrong with it at once.
func (c *Config) Validate() error {
	verrs := &errors.ValidationErrors{}

	if c.DurationSec <= 0 {
		verrs.Add(errors.NewInvalidValue("duration_sec", fmt.Sprintf("%d", c.DurationSec), "must be positive"))
	}
	if c.SegmentSec <= 0 {
		verrs.Add(errors.NewInvalidValue("segment_sec", fmt.Sprintf("%d", c.SegmentSec), "must be positive"))
	} else if c.SegmentSec > config.DefaultSegmentCeilingSec {
		c.SegmentSec = config.DefaultSegmentCeilingSec
	}
	if c.OutputDir == "" {
		verrs.Add(errors.NewMissingField("output_dir"))
	}
	if _, err := storage.ParseEncoding(c.Encoding); err != nil {
		verrs.Add(errors.NewInvalidValue("encoding", c.Encoding, "must be tabular or binary"))
	}

	if c.Rate.MarginFactor < 1 {
		verrs.Add(errors.NewInvalidValue("rate.margin_factor", fmt.Sprintf("%g", c.Rate.MarginFactor), "must be >= 1"))
	}
	if c.Rate.DeratingFactor <= 0 {
		verrs.Add(errors.NewInvalidValue("rate.derating_factor", fmt.Sprintf("%g", c.Rate.DeratingFactor), "must be positive"))
	}
	switch c.Rate.CapPolicy {
	case "cap", "extend":
	default:
		verrs.Add(errors.NewInvalidValue("rate.cap_policy", c.Rate.CapPolicy, "must be cap or extend"))
	}

	if c.Scheduler.TickDelayMs < 0 {
		verrs.Add(errors.NewInvalidValue("scheduler.tick_delay_ms", fmt.Sprintf("%d", c.Scheduler.TickDelayMs), "must not be negative"))
	}
	if c.Scheduler.RotateMarginMs < 0 {
		verrs.Add(errors.NewInvalidValue("scheduler.rotate_margin_ms", fmt.Sprintf("%d", c.Scheduler.RotateMarginMs), "must not be negative"))
	}

	if c.Archive.BatchThreshold < 0 {
		verrs.Add(errors.NewInvalidValue("archive.batch_threshold", fmt.Sprintf("%d", c.Archive.BatchThreshold), "must not be negative"))
	}
	if c.Archive.Workers <= 0 {
		c.Archive.Workers = config.DefaultArchiveWorkers
	}

	for i, sc := range c.Sensors {
		switch sc.Family {
		case FamilyMagnetometer, FamilyThermometer, FamilySimulated:
		case "":
			verrs.Add(errors.NewMissingField(fmt.Sprintf("sensors[%d].family", i)))
		default:
			verrs.Add(errors.NewInvalidValue(fmt.Sprintf("sensors[%d].family", i), sc.Family, "must be rm3100, mcp9808, or sim"))
		}
		if sc.Family != FamilySimulated && sc.Address == 0 {
			verrs.Add(errors.NewMissingField(fmt.Sprintf("sensors[%d].address", i)))
		}
		if sc.Frequency < 0 {
			verrs.Add(errors.NewInvalidValue(fmt.Sprintf("sensors[%d].frequency", i), fmt.Sprintf("%g", sc.Frequency), "must not be negative"))
		}
	}

	return verrs.Err()
}
