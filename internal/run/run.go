// Package run assembles and executes one acquisition run: it creates the
// run directory, attaches the run log, launches sensors, wires the
// estimator, buffers, writer, dispatcher, and governor into a scheduler,
// and tears everything down at the end.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fieldcap/fieldcap/config"
	"github.com/fieldcap/fieldcap/internal/archive"
	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/governor"
	"github.com/fieldcap/fieldcap/internal/loader"
	"github.com/fieldcap/fieldcap/internal/logging"
	"github.com/fieldcap/fieldcap/internal/rate"
	"github.com/fieldcap/fieldcap/internal/scheduler"
	"github.com/fieldcap/fieldcap/internal/segment"
	"github.com/fieldcap/fieldcap/internal/sensor"
	"github.com/fieldcap/fieldcap/internal/storage"
)

const runDirStampFormat = "20060102_150405"

// Result summarizes a completed run.
type Result struct {
	Dir     string
	Sensors []scheduler.SensorStats
}

// Execute performs one full acquisition run. The only errors it returns
// are fatal startup conditions (output directory not creatable, no usable
// sensors) and context cancellation before acquisition could finish
// cleanly; everything else is contained and logged.
func Execute(ctx context.Context, cfg *loader.Config) (*Result, error) {
	log := logging.Component("run")

	dir, err := createRunDir(cfg)
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(dir, "run.log")
	detach, err := logging.AttachFile(logPath)
	if err != nil {
		// A run without its own log file is still a run.
		log.Warn("run log unavailable", "path", logPath, "err", err)
		detach = func() error { return nil }
	}
	log.Info("run starting",
		"dir", dir,
		"duration_sec", cfg.DurationSec,
		"segment_sec", cfg.SegmentSec,
		"encoding", cfg.Encoding)

	adapters, bus, err := launchSensors(cfg, log)
	if err != nil {
		_ = detach()
		return nil, err
	}
	defer func() {
		for _, a := range adapters {
			_ = a.Close()
		}
		if bus != nil {
			_ = bus.Close()
		}
	}()

	est := buildEstimate(cfg, adapters)
	budget := est.Budget(cfg.SegmentTarget())
	log.Info("sample budget estimated",
		"max_frequency", est.MaxFrequency,
		"per_segment_budget", budget)

	buffers := make([]*segment.Buffer, len(adapters))
	for i, a := range adapters {
		buffers[i] = segment.NewBuffer(a.Identifier(), a.Fields(), cfg.SegmentTarget(), budget)
	}

	enc, err := storage.ParseEncoding(cfg.Encoding)
	if err != nil {
		_ = detach()
		return nil, err
	}
	writer := storage.NewWriter(dir, enc)

	launcher := archive.NewExecLauncher([]string{cfg.Archive.Command})
	if err := launcher.Check(); err != nil {
		log.Warn("archiver unavailable, manifests will be left for manual recovery",
			"command", cfg.Archive.Command, "err", err)
	}
	dispatcher := archive.NewDispatcher(archive.Config{
		Dir:       dir,
		Threshold: cfg.Archive.BatchThreshold,
		Bundle:    cfg.Archive.Bundle,
		Launcher:  launcher,
	})

	sched := scheduler.New(scheduler.Config{
		Duration:      cfg.Duration(),
		TickDelay:     tickDelay(cfg, est, log),
		RotateMargin:  time.Duration(cfg.Scheduler.RotateMarginMs) * time.Millisecond,
		ProgressEvery: cfg.Scheduler.ProgressEvery,
		CapPolicy:     scheduler.CapPolicy(cfg.Rate.CapPolicy),
	}, adapters, buffers, writer, dispatcher, governor.New())

	stats, runErr := sched.Run(ctx)

	for _, st := range stats {
		log.Info("sensor summary",
			"sensor", st.SensorID,
			"samples", st.Samples,
			"segments", st.Segments,
			"read_failures", st.ReadFailures,
			"dropped", st.Dropped)
	}

	if err := detach(); err != nil {
		log.Warn("run log detach failed", "err", err)
	}
	compressRunLog(logPath, log)

	return &Result{Dir: dir, Sensors: stats}, runErr
}

// createRunDir creates the output root and a fresh numbered run directory
// under it: NNN_YYYYMMDD_HHMMSS_<duration>.
func createRunDir(cfg *loader.Config) (string, error) {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrOutputDir, "%s: %v", cfg.OutputDir, err)
	}
	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil {
		return "", errors.Wrapf(errors.ErrOutputDir, "%s: %v", cfg.OutputDir, err)
	}
	seq := 0
	for _, e := range entries {
		if e.IsDir() {
			seq++
		}
	}
	name := fmt.Sprintf("%0*d_%s_%d",
		config.DefaultRunDirPrefixWidth,
		seq+1,
		time.Now().UTC().Format(runDirStampFormat),
		cfg.DurationSec)
	dir := filepath.Join(cfg.OutputDir, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrOutputDir, "%s: %v", dir, err)
	}
	return dir, nil
}

// launchSensors opens the bus (when any hardware sensor is configured) and
// launches every configured adapter. Launch failures exclude the sensor
// and are logged once; only a completely empty roster is fatal.
func launchSensors(cfg *loader.Config, log *slog.Logger) ([]sensor.Adapter, *sensor.I2CBus, error) {
	var bus *sensor.I2CBus
	needsBus := false
	for _, sc := range cfg.Sensors {
		if sc.Family != loader.FamilySimulated {
			needsBus = true
		}
	}
	if needsBus {
		b, err := sensor.OpenI2C(cfg.Bus)
		if err != nil {
			// Hardware sensors are all unusable, but simulated ones may
			// still carry the run.
			log.Error("bus open failed", "bus", cfg.Bus, "err", err)
		} else {
			bus = b
		}
	}

	var adapters []sensor.Adapter
	simIndex := 0
	for _, sc := range cfg.Sensors {
		a, err := launchOne(cfg, bus, sc, &simIndex)
		if err != nil {
			log.Warn("sensor excluded from run", "family", sc.Family,
				"address", fmt.Sprintf("0x%02x", sc.Address), "err", err)
			continue
		}
		adapters = append(adapters, a)
	}
	if len(adapters) == 0 {
		if bus != nil {
			_ = bus.Close()
		}
		return nil, nil, errors.Wrap(errors.ErrNoUsableSensors, "sensor launch")
	}
	return adapters, bus, nil
}

func launchOne(cfg *loader.Config, bus *sensor.I2CBus, sc loader.SensorConfig, simIndex *int) (sensor.Adapter, error) {
	switch sc.Family {
	case loader.FamilySimulated:
		freq := sc.Frequency
		if freq == 0 {
			freq = config.DefaultThermometerFrequency
		}
		a := sensor.NewSimulated(*simIndex, []string{"X", "Y", "Z"}, freq)
		*simIndex++
		return a, nil

	case loader.FamilyMagnetometer:
		if bus == nil {
			return nil, errors.Wrap(errors.ErrBusUnavailable, "magnetometer launch")
		}
		mc := sensor.MagnetometerConfig{
			Address:       uint8(sc.Address),
			FrequencyCode: sc.FrequencyCode,
			CycleCount:    sc.CycleCount,
		}
		if mc.FrequencyCode == 0 {
			mc.FrequencyCode = config.DefaultFrequencyCode
		}
		if mc.CycleCount == 0 {
			mc.CycleCount = config.DefaultCycleCount
		}
		return sensor.LaunchMagnetometer(bus, mc)

	case loader.FamilyThermometer:
		if bus == nil {
			return nil, errors.Wrap(errors.ErrBusUnavailable, "thermometer launch")
		}
		freq := sc.Frequency
		if freq == 0 {
			freq = config.DefaultThermometerFrequency
		}
		return sensor.LaunchThermometer(bus, uint8(sc.Address), freq)

	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedFamily, "%q", sc.Family)
	}
}

// buildEstimate sizes the worst-case per-segment sample budget from the
// frequencies the launched sensors actually report.
func buildEstimate(cfg *loader.Config, adapters []sensor.Adapter) *rate.Estimate {
	freqs := make(map[string]float64, len(adapters))
	for _, a := range adapters {
		freqs[a.Identifier()] = a.ReportedFrequency()
	}
	return rate.New(freqs, cfg.Rate.MarginFactor, cfg.Rate.DeratingFactor)
}

// tickDelay clamps the configured loop delay below the minimum
// inter-sample interval of the fastest sensor so the loop can never be the
// sampling bottleneck.
func tickDelay(cfg *loader.Config, est *rate.Estimate, log *slog.Logger) time.Duration {
	d := time.Duration(cfg.Scheduler.TickDelayMs) * time.Millisecond
	if min := est.MinInterval(); min > 0 && d > min {
		log.Warn("tick delay clamped to sensor interval", "configured", d, "clamped", min)
		d = min
	}
	return d
}

// compressRunLog compresses the detached run log in place, keeping the
// original alongside the compressed copy.
func compressRunLog(logPath string, log *slog.Logger) {
	if _, err := os.Stat(logPath); err != nil {
		return
	}
	out, err := archive.CompressFile(logPath, false)
	if err != nil {
		log.Warn("run log compression failed", "err", err)
		return
	}
	log.Info("run log compressed", "path", out)
}
