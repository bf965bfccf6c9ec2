package loader

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fieldcap/fieldcap/config"
	"github.com/fieldcap/fieldcap/internal/errors"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
bus: 3
duration_sec: 120
segment_sec: 60
output_dir: /data/mag
encoding: binary
rate:
  cap_policy: extend
archive:
  batch_threshold: 4
  bundle: true
sensors:
  - family: rm3100
    address: 0x20
  - family: mcp9808
    address: 0x18
    frequency: 4
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Bus != 3 || cfg.DurationSec != 120 || cfg.SegmentSec != 60 {
		t.Errorf("run params = %d/%d/%d", cfg.Bus, cfg.DurationSec, cfg.SegmentSec)
	}
	if cfg.OutputDir != "/data/mag" || cfg.Encoding != "binary" {
		t.Errorf("output = %q/%q", cfg.OutputDir, cfg.Encoding)
	}
	if cfg.Rate.CapPolicy != "extend" {
		t.Errorf("cap policy = %q", cfg.Rate.CapPolicy)
	}
	// Unset values keep their defaults.
	if cfg.Rate.MarginFactor != config.DefaultMarginFactor {
		t.Errorf("margin = %g, want default", cfg.Rate.MarginFactor)
	}
	if cfg.Archive.BatchThreshold != 4 || !cfg.Archive.Bundle {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	if len(cfg.Sensors) != 2 || cfg.Sensors[0].Address != 0x20 {
		t.Errorf("sensors = %+v", cfg.Sensors)
	}
	if cfg.Duration() != 2*time.Minute || cfg.SegmentTarget() != time.Minute {
		t.Errorf("durations = %v/%v", cfg.Duration(), cfg.SegmentTarget())
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load of missing file succeeded")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "sensors: [unclosed")
	if _, err := Load(path); !errors.Is(err, errors.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationSec = 0
	cfg.Encoding = "xml"
	cfg.Rate.CapPolicy = "defer"
	cfg.Sensors = []SensorConfig{{Family: "bmp280", Address: 0x76}}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate passed")
	}
	var verrs *errors.ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("err type %T", err)
	}
	if len(verrs.Errors) != 4 {
		t.Errorf("collected %d errors, want 4:\n%v", len(verrs.Errors), err)
	}
	if !strings.Contains(err.Error(), "cap_policy") {
		t.Errorf("message missing cap_policy: %v", err)
	}
}

func TestValidateClampsSegmentCeiling(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SegmentSec = config.DefaultSegmentCeilingSec * 2
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.SegmentSec != config.DefaultSegmentCeilingSec {
		t.Errorf("SegmentSec = %d, want clamped to %d", cfg.SegmentSec, config.DefaultSegmentCeilingSec)
	}
}

func TestValidateRequiresHardwareAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensors = []SensorConfig{{Family: FamilyMagnetometer}}
	if err := cfg.Validate(); !errors.Is(err, errors.ErrMissingField) {
		t.Errorf("err = %v, want ErrMissingField", err)
	}

	// Simulated sensors carry no bus address.
	cfg.Sensors = []SensorConfig{{Family: FamilySimulated}}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sim sensor rejected: %v", err)
	}
}
