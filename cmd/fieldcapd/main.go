// Command fieldcapd runs a bounded-memory, long-duration acquisition from
// bus-attached sensors, writing per-sensor segment files and dispatching
// them to the archiver in batches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/loader"
	"github.com/fieldcap/fieldcap/internal/logging"
	"github.com/fieldcap/fieldcap/internal/run"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML configuration (defaults apply if empty)")
		busNum     = flag.Int("bus", -1, "I2C bus number, overrides config")
		duration   = flag.Int("duration", 0, "acquisition duration in seconds, overrides config")
		segmentSec = flag.Int("segment", 0, "segment target duration in seconds, overrides config")
		outputDir  = flag.String("out", "", "output root directory, overrides config")
		encoding   = flag.String("encoding", "", "segment encoding: tabular or binary, overrides config")
		simulate   = flag.Int("simulate", 0, "replace the sensor roster with N simulated sensors")
		logLevel   = flag.String("log-level", "", "log level: debug, info, warn, error")
		jsonLog    = flag.Bool("json-log", false, "emit JSON log lines")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fieldcapd: %v\n", err)
		os.Exit(2)
	}

	// Flags override file values.
	if *busNum >= 0 {
		cfg.Bus = *busNum
	}
	if *duration > 0 {
		cfg.DurationSec = *duration
	}
	if *segmentSec > 0 {
		cfg.SegmentSec = *segmentSec
	}
	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *encoding != "" {
		cfg.Encoding = *encoding
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *jsonLog {
		cfg.Log.JSON = true
	}
	if *simulate > 0 {
		cfg.Sensors = nil
		for i := 0; i < *simulate; i++ {
			cfg.Sensors = append(cfg.Sensors, loader.SensorConfig{
				Family:    loader.FamilySimulated,
				Frequency: 10,
			})
		}
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "fieldcapd: %v\n", err)
		os.Exit(2)
	}
	if len(cfg.Sensors) == 0 {
		fmt.Fprintln(os.Stderr, "fieldcapd: no sensors configured (use -config or -simulate)")
		os.Exit(2)
	}

	logging.Init(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run.Execute(ctx, cfg)
	switch {
	case err == nil:
		log.Info("run complete", "dir", res.Dir)
	case errors.Is(err, context.Canceled):
		log.Warn("run interrupted", "dir", res.Dir)
	case errors.IsFatal(err):
		log.Error("run aborted", "err", err)
		os.Exit(1)
	default:
		log.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*loader.Config, error) {
	if path == "" {
		return loader.DefaultConfig(), nil
	}
	return loader.Load(path)
}
