package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/segment"
)

// Tabular layout: first line names the fields (Timestamp,Counter,<axes>),
// one record per sample in counter order. Timestamps are printed with
// strconv's shortest round-trip formatting so decoding reproduces the
// original float64 bit-exactly.

func writeTabular(path string, seg *segment.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)

	header := append([]string{"Timestamp", "Counter"}, seg.Fields...)
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}

	record := make([]string, len(header))
	for i := range seg.Samples {
		s := &seg.Samples[i]
		record[0] = strconv.FormatFloat(s.Timestamp, 'f', -1, 64)
		record[1] = strconv.FormatUint(s.Counter, 10)
		for j, v := range s.Values {
			record[2+j] = strconv.FormatInt(v, 10)
		}
		if err := w.Write(record); err != nil {
			f.Close()
			return err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readTabular(path string) (*segment.Segment, error) {
	seg, err := segmentFromFileName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = detectDelimiter(path)

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: %v", path, err)
	}
	if len(records) == 0 {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: missing header", path)
	}

	header := records[0]
	if len(header) < 2 || header[0] != "Timestamp" || header[1] != "Counter" {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: unexpected header %v", path, header)
	}
	seg.Fields = append([]string(nil), header[2:]...)

	seg.Samples = make([]segment.Sample, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, errors.Wrapf(errors.ErrCorruptSegment,
				"%s: record %d has %d fields, want %d", path, i+1, len(rec), len(header))
		}

		ts, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: record %d timestamp: %v", path, i+1, err)
		}
		counter, err := strconv.ParseUint(rec[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: record %d counter: %v", path, i+1, err)
		}

		values := make([]int64, len(rec)-2)
		for j, cell := range rec[2:] {
			values[j], err = strconv.ParseInt(cell, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCorruptSegment,
					"%s: record %d field %s: %v", path, i+1, header[2+j], err)
			}
		}

		seg.Samples = append(seg.Samples, segment.Sample{
			Timestamp: ts,
			Counter:   counter,
			Values:    values,
		})
	}

	return seg, nil
}

// detectDelimiter sniffs the header line delimiter. Some downstream tools
// re-export with semicolons; both are accepted on read.
func detectDelimiter(path string) rune {
	f, err := os.Open(path)
	if err != nil {
		return ','
	}
	defer f.Close()

	buf := make([]byte, 256)
	n, _ := f.Read(buf)
	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.ContainsRune(line, ';') && !strings.ContainsRune(line, ',') {
		return ';'
	}
	return ','
}

// segmentFromFileName reconstructs sensor ID, start time, and target
// duration from a deterministic segment file name. The sensor ID itself
// may contain underscores, so the name is parsed from the end.
func segmentFromFileName(path string) (*segment.Segment, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(base, "_")
	if len(parts) < 4 {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: unrecognized file name", path)
	}

	durPart := parts[len(parts)-1]
	if !strings.HasSuffix(durPart, "s") {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: missing duration suffix", path)
	}
	durSec, err := strconv.Atoi(strings.TrimSuffix(durPart, "s"))
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: duration: %v", path, err)
	}

	stamp := parts[len(parts)-3] + "_" + parts[len(parts)-2]
	start, err := time.ParseInLocation(startTimeFormat, stamp, time.UTC)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: start time: %v", path, err)
	}

	return &segment.Segment{
		SensorID: strings.Join(parts[:len(parts)-3], "_"),
		Start:    start,
		Target:   time.Duration(durSec) * time.Second,
	}, nil
}
