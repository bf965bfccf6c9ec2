package rate

import (
	"testing"
	"time"
)

func TestWorstCase(t *testing.T) {
	tests := []struct {
		name     string
		freq     float64
		margin   float64
		derating float64
		dur      time.Duration
		want     int
	}{
		{"five seconds at one fifty", 150, 1.1, 1, 5 * time.Second, 825},
		{"derated magnetometer hour", 150, 1.1, 3, time.Hour, 198000},
		{"thermometer hour", 4, 1.1, 1, time.Hour, 15840},
		{"fractional count rounds up", 3, 1.1, 1, time.Second, 4},
		{"margin below one clamps to one", 100, 0.5, 1, time.Second, 100},
		{"zero derating treated as one", 100, 1.0, 0, time.Second, 100},
		{"zero frequency", 0, 1.1, 3, time.Hour, 0},
		{"zero duration", 150, 1.1, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WorstCase(tt.freq, tt.margin, tt.derating, tt.dur)
			if got != tt.want {
				t.Errorf("WorstCase(%g, %g, %g, %v) = %d, want %d",
					tt.freq, tt.margin, tt.derating, tt.dur, got, tt.want)
			}
		})
	}
}

func TestBudgetUsesFastestSensor(t *testing.T) {
	e := New(map[string]float64{
		"mag_0x20":  150,
		"mag_0x23":  150,
		"temp_0x18": 4,
	}, 1.1, 3)

	if e.MaxFrequency != 150 {
		t.Fatalf("MaxFrequency = %g, want 150", e.MaxFrequency)
	}
	if got := e.Budget(time.Hour); got != 198000 {
		t.Errorf("Budget(1h) = %d, want 198000", got)
	}
}

func TestBudgetNoSensors(t *testing.T) {
	e := New(nil, 1.1, 3)
	if got := e.Budget(time.Hour); got != 0 {
		t.Errorf("Budget(1h) with no sensors = %d, want 0", got)
	}
	if got := e.MinInterval(); got != 0 {
		t.Errorf("MinInterval() with no sensors = %v, want 0", got)
	}
}

func TestMinInterval(t *testing.T) {
	e := New(map[string]float64{"mag_0x20": 100}, 1.0, 1)
	if got := e.MinInterval(); got != 10*time.Millisecond {
		t.Errorf("MinInterval() = %v, want 10ms", got)
	}

	// A derated device samples slower, so the interval grows.
	e = New(map[string]float64{"mag_0x20": 100}, 1.0, 2)
	if got := e.MinInterval(); got != 20*time.Millisecond {
		t.Errorf("derated MinInterval() = %v, want 20ms", got)
	}
}
