// Package storage persists closed segments to disk.
//
// Two encodings are supported and both round-trip exactly: a tabular CSV
// layout for direct inspection and a compact columnar Parquet layout for
// long runs. The output path is deterministic, derived from the sensor
// identifier, the segment start time at second resolution, and the segment
// duration, so a run's file set can be predicted from its parameters.
package storage

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/segment"
)

// Encoding selects the on-disk segment layout.
type Encoding int

const (
	// EncodingTabular writes comma-delimited text with a header row.
	EncodingTabular Encoding = iota
	// EncodingBinary writes a columnar Parquet file with the same
	// logical fields.
	EncodingBinary
)

// String returns the config name of the encoding.
func (e Encoding) String() string {
	switch e {
	case EncodingTabular:
		return "tabular"
	case EncodingBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Ext returns the file extension for the encoding.
func (e Encoding) Ext() string {
	switch e {
	case EncodingBinary:
		return ".parquet"
	default:
		return ".csv"
	}
}

// ParseEncoding parses a config encoding name.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "tabular", "csv", "":
		return EncodingTabular, nil
	case "binary", "parquet":
		return EncodingBinary, nil
	default:
		return 0, errors.Wrapf(errors.ErrUnknownEncoding, "%q", s)
	}
}

// startTimeFormat is the second-resolution timestamp embedded in file names.
const startTimeFormat = "20060102_150405"

// Writer serializes closed segments into one directory.
type Writer struct {
	dir string
	enc Encoding
}

// NewWriter creates a segment writer for dir using the given encoding.
func NewWriter(dir string, enc Encoding) *Writer {
	return &Writer{dir: dir, enc: enc}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Encoding returns the configured encoding.
func (w *Writer) Encoding() Encoding { return w.enc }

// FileName returns the deterministic file name for a segment:
// {sensorID}_{start}_{duration}s{ext}.
func FileName(seg *segment.Segment, enc Encoding) string {
	return fmt.Sprintf("%s_%s_%ds%s",
		seg.SensorID,
		seg.Start.UTC().Format(startTimeFormat),
		int(seg.Target/time.Second),
		enc.Ext())
}

// Write serializes seg and returns the written path. On error the
// segment's data is gone (recoverable data loss, not a fatal condition)
// and the caller logs and continues.
func (w *Writer) Write(seg *segment.Segment) (string, error) {
	path := filepath.Join(w.dir, FileName(seg, w.enc))

	var err error
	switch w.enc {
	case EncodingTabular:
		err = writeTabular(path, seg)
	case EncodingBinary:
		err = writeBinary(path, seg)
	default:
		err = errors.Wrapf(errors.ErrUnknownEncoding, "%d", w.enc)
	}
	if err != nil {
		return "", errors.Wrapf(errors.ErrStorageWrite, "%s: %v", path, err)
	}
	return path, nil
}

// Read decodes a segment file written by either encoding, selected by
// extension. Decoding is idempotent: repeated reads yield identical
// segments.
func Read(path string) (*segment.Segment, error) {
	switch filepath.Ext(path) {
	case ".csv":
		return readTabular(path)
	case ".parquet":
		return readBinary(path)
	default:
		return nil, errors.Wrapf(errors.ErrUnknownEncoding, "%s", path)
	}
}
