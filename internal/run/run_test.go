package run

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldcap/fieldcap/internal/loader"
)

func simConfig(t *testing.T) *loader.Config {
	t.Helper()
	cfg := loader.DefaultConfig()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.DurationSec = 1
	cfg.SegmentSec = 1
	cfg.Rate.DeratingFactor = 1
	cfg.Sensors = []loader.SensorConfig{
		{Family: loader.FamilySimulated, Frequency: 5},
		{Family: loader.FamilySimulated, Frequency: 5},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestExecuteSimulatedRun(t *testing.T) {
	cfg := simConfig(t)

	res, err := Execute(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Sensors) != 2 {
		t.Fatalf("sensor stats = %d, want 2", len(res.Sensors))
	}
	for _, st := range res.Sensors {
		if st.Samples == 0 {
			t.Errorf("%s produced no samples", st.SensorID)
		}
		if st.Segments == 0 {
			t.Errorf("%s closed no segments", st.SensorID)
		}
	}

	entries, err := os.ReadDir(res.Dir)
	if err != nil {
		t.Fatal(err)
	}
	var segments, manifests int
	var haveLog, haveCompressedLog bool
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".csv"):
			segments++
		case strings.HasPrefix(name, "files_to_archive_"):
			manifests++
		case name == "run.log":
			haveLog = true
		case name == "run.log.zst":
			haveCompressedLog = true
		}
	}
	if segments == 0 {
		t.Error("no segment files written")
	}
	// The archiver binary is absent in tests, so the drained batch leaves
	// its manifest behind.
	if manifests == 0 {
		t.Error("no manifest left by the end-of-run drain")
	}
	if !haveLog || !haveCompressedLog {
		t.Errorf("run log files: log=%v compressed=%v", haveLog, haveCompressedLog)
	}
}

func TestRunDirNamesSequence(t *testing.T) {
	cfg := simConfig(t)

	first, err := createRunDir(cfg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := createRunDir(cfg)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.HasPrefix(filepath.Base(first), "001_") {
		t.Errorf("first run dir = %q, want 001_ prefix", filepath.Base(first))
	}
	if !strings.HasPrefix(filepath.Base(second), "002_") {
		t.Errorf("second run dir = %q, want 002_ prefix", filepath.Base(second))
	}
	if !strings.HasSuffix(filepath.Base(first), "_1") {
		t.Errorf("run dir %q missing duration suffix", filepath.Base(first))
	}
}

func TestExecuteNoUsableSensors(t *testing.T) {
	cfg := simConfig(t)
	cfg.Sensors = []loader.SensorConfig{
		{Family: loader.FamilyMagnetometer, Address: 0x20},
	}
	cfg.Bus = 250 // no such bus device

	if _, err := Execute(context.Background(), cfg); err == nil {
		t.Fatal("Execute succeeded with no reachable sensors")
	}
}

func TestExecuteOutputDirNotCreatable(t *testing.T) {
	cfg := simConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.OutputDir = filepath.Join(blocker, "out")

	if _, err := Execute(context.Background(), cfg); err == nil {
		t.Fatal("Execute succeeded under an uncreatable output dir")
	}
}
