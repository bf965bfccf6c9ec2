package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/segment"
)

func testSegment() *segment.Segment {
	return &segment.Segment{
		SensorID: "mag_0x20",
		Fields:   []string{"X", "Y", "Z"},
		Start:    time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
		Target:   time.Hour,
		Samples: []segment.Sample{
			{Timestamp: 1717245000.001953125, Counter: 0, Values: []int64{120, -35, 4096}},
			{Timestamp: 1717245000.25, Counter: 1, Values: []int64{-8388608, 8388607, 0}},
			{Timestamp: 1717245001.0, Counter: 2, Values: []int64{1, 2, 3}},
		},
	}
}

func TestFileNameDeterministic(t *testing.T) {
	seg := testSegment()

	tests := []struct {
		enc  Encoding
		want string
	}{
		{EncodingTabular, "mag_0x20_20240601_123000_3600s.csv"},
		{EncodingBinary, "mag_0x20_20240601_123000_3600s.parquet"},
	}
	for _, tt := range tests {
		if got := FileName(seg, tt.enc); got != tt.want {
			t.Errorf("FileName(%v) = %q, want %q", tt.enc, got, tt.want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{EncodingTabular, EncodingBinary} {
		t.Run(enc.String(), func(t *testing.T) {
			dir := t.TempDir()
			seg := testSegment()

			path, err := NewWriter(dir, enc).Write(seg)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}

			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if got.SensorID != seg.SensorID {
				t.Errorf("SensorID = %q, want %q", got.SensorID, seg.SensorID)
			}
			if !got.Start.Equal(seg.Start) {
				t.Errorf("Start = %v, want %v", got.Start, seg.Start)
			}
			if got.Target != seg.Target {
				t.Errorf("Target = %v, want %v", got.Target, seg.Target)
			}
			if !reflect.DeepEqual(got.Fields, seg.Fields) {
				t.Errorf("Fields = %v, want %v", got.Fields, seg.Fields)
			}
			if !reflect.DeepEqual(got.Samples, seg.Samples) {
				t.Errorf("Samples = %v, want %v", got.Samples, seg.Samples)
			}

			// Repeated decode yields the identical segment.
			again, err := Read(path)
			if err != nil {
				t.Fatalf("second Read: %v", err)
			}
			if !reflect.DeepEqual(again, got) {
				t.Error("second decode differs from first")
			}
		})
	}
}

func TestRoundTripEmptySegment(t *testing.T) {
	for _, enc := range []Encoding{EncodingTabular, EncodingBinary} {
		t.Run(enc.String(), func(t *testing.T) {
			dir := t.TempDir()
			seg := testSegment()
			seg.Samples = nil

			path, err := NewWriter(dir, enc).Write(seg)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			got, err := Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if len(got.Samples) != 0 {
				t.Errorf("Samples = %v, want empty", got.Samples)
			}
		})
	}
}

func TestWriteUnwritableDir(t *testing.T) {
	seg := testSegment()
	_, err := NewWriter(filepath.Join(t.TempDir(), "missing", "nested"), EncodingTabular).Write(seg)
	if !errors.Is(err, errors.ErrStorageWrite) {
		t.Errorf("Write into missing dir: err = %v, want ErrStorageWrite", err)
	}
}

func TestParseEncoding(t *testing.T) {
	tests := []struct {
		in      string
		want    Encoding
		wantErr bool
	}{
		{"tabular", EncodingTabular, false},
		{"csv", EncodingTabular, false},
		{"", EncodingTabular, false},
		{"binary", EncodingBinary, false},
		{"parquet", EncodingBinary, false},
		{"xml", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseEncoding(tt.in)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrUnknownEncoding) {
				t.Errorf("ParseEncoding(%q) err = %v, want ErrUnknownEncoding", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseEncoding(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestSegmentFromFileNameUnderscoredID(t *testing.T) {
	seg, err := segmentFromFileName("/data/run/temp_board_0x18_20240601_000000_600s.csv")
	if err != nil {
		t.Fatalf("segmentFromFileName: %v", err)
	}
	if seg.SensorID != "temp_board_0x18" {
		t.Errorf("SensorID = %q, want temp_board_0x18", seg.SensorID)
	}
	if seg.Target != 10*time.Minute {
		t.Errorf("Target = %v, want 10m", seg.Target)
	}
	want := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if !seg.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", seg.Start, want)
	}
}

func TestReadSemicolonDelimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mag_0x20_20240601_123000_3600s.csv")
	data := strings.Join([]string{
		"Timestamp;Counter;X;Y;Z",
		"1717245000.5;0;1;2;3",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	seg, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if seg.Len() != 1 || seg.Samples[0].Timestamp != 1717245000.5 {
		t.Errorf("decoded %v", seg.Samples)
	}
}

func TestReadCorruptTabular(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data string
	}{
		{"bad header", "Time,Seq,X\n1,2,3\n"},
		{"bad timestamp", "Timestamp,Counter,X\nnope,0,1\n"},
		{"bad value", "Timestamp,Counter,X\n1.5,0,abc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "mag_0x20_20240601_123000_3600s.csv")
			if err := os.WriteFile(path, []byte(tt.data), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Read(path); !errors.Is(err, errors.ErrCorruptSegment) {
				t.Errorf("err = %v, want ErrCorruptSegment", err)
			}
		})
	}
}

func TestReadUnknownExtension(t *testing.T) {
	if _, err := Read("seg.dat"); !errors.Is(err, errors.ErrUnknownEncoding) {
		t.Errorf("err = %v, want ErrUnknownEncoding", err)
	}
}
