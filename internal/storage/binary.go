package storage

import (
	"io"
	"os"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/segment"
)

// Binary layout: a zstd-compressed Parquet file with one row per sample
// and the segment identity carried in file key-value metadata. Axis values
// stay integers end to end, so reconstruction of the tabular form is exact.

// sampleRow is the Parquet row shape for one sample.
type sampleRow struct {
	Timestamp float64 `parquet:"timestamp"`
	Counter   uint64  `parquet:"counter"`
	Values    []int64 `parquet:"values"`
}

// Metadata keys carried in the Parquet footer.
const (
	metaSensorID = "fieldcap.sensor_id"
	metaFields   = "fieldcap.fields"
)

func writeBinary(path string, seg *segment.Segment) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	w := parquet.NewGenericWriter[sampleRow](f,
		parquet.Compression(&parquet.Zstd),
		parquet.KeyValueMetadata(metaSensorID, seg.SensorID),
		parquet.KeyValueMetadata(metaFields, strings.Join(seg.Fields, ",")),
	)

	rows := make([]sampleRow, len(seg.Samples))
	for i := range seg.Samples {
		s := &seg.Samples[i]
		rows[i] = sampleRow{
			Timestamp: s.Timestamp,
			Counter:   s.Counter,
			Values:    s.Values,
		}
	}

	if len(rows) > 0 {
		if _, err := w.Write(rows); err != nil {
			w.Close()
			f.Close()
			return err
		}
	}

	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func readBinary(path string) (*segment.Segment, error) {
	seg, err := segmentFromFileName(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, info.Size())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: %v", path, err)
	}

	if id, ok := pf.Lookup(metaSensorID); ok {
		seg.SensorID = id
	}
	if fields, ok := pf.Lookup(metaFields); ok && fields != "" {
		seg.Fields = strings.Split(fields, ",")
	}

	reader := parquet.NewGenericReader[sampleRow](pf)
	defer reader.Close()

	seg.Samples = make([]segment.Sample, 0, reader.NumRows())
	buf := make([]sampleRow, 1024)
	for {
		n, err := reader.Read(buf)
		for i := 0; i < n; i++ {
			seg.Samples = append(seg.Samples, segment.Sample{
				Timestamp: buf[i].Timestamp,
				Counter:   buf[i].Counter,
				Values:    buf[i].Values,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(errors.ErrCorruptSegment, "%s: %v", path, err)
		}
		if n == 0 {
			break
		}
	}

	return seg, nil
}
