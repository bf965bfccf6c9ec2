package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/fieldcap/fieldcap/internal/errors"
)

// Compression engine run by the archiver process. Two modes:
//
//   - per-file: every path in the manifest is compressed to <path>.zst and
//     the source removed on success;
//   - bundle: all paths go into one tar.zst archive, sources removed after
//     the archive is safely on disk.
//
// In both modes the manifest is removed only on full success. Partial
// failure leaves the unprocessed sources and the manifest in place and
// returns ErrArchivePartial.

// CompressFiles compresses each file listed in the manifest with up to
// workers concurrent encoders.
func CompressFiles(manifestPath string, workers int, log *slog.Logger) error {
	paths, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = 1
	}

	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(workers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if _, err := os.Stat(path); err != nil {
				failed.Add(1)
				log.Warn("file not found", "path", path)
				return nil
			}
			out, err := CompressFile(path, true)
			if err != nil {
				failed.Add(1)
				log.Error("compression failed", "path", path, "error", err)
				return nil
			}
			log.Info("compressed", "path", path, "output", out)
			return nil
		})
	}
	g.Wait()

	if n := failed.Load(); n > 0 {
		log.Warn("manifest kept: not all files archived",
			"manifest", manifestPath, "failed", n, "total", len(paths))
		return errors.Wrapf(errors.ErrArchivePartial, "%d of %d files failed", n, len(paths))
	}

	if err := os.Remove(manifestPath); err != nil {
		return err
	}
	log.Info("manifest archived and removed", "manifest", manifestPath, "files", len(paths))
	return nil
}

// CompressBatch bundles every file in the manifest into one tar.zst
// archive at archivePath, removing the sources and the manifest on
// success.
func CompressBatch(manifestPath, archivePath string, log *slog.Logger) error {
	paths, err := ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	// Files missing from disk are reported but do not block the batch:
	// the bundle archives what exists.
	present := paths[:0]
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			log.Warn("file not found", "path", p)
			continue
		}
		present = append(present, p)
	}
	if len(present) == 0 {
		return errors.Wrapf(errors.ErrArchivePartial, "no listed files present")
	}

	log.Info("starting bundle", "archive", archivePath, "files", len(present))

	if err := writeBundle(archivePath, present); err != nil {
		os.Remove(archivePath)
		return err
	}

	// The archive is durable; sources hand over ownership now.
	for _, p := range present {
		if err := os.Remove(p); err != nil {
			log.Warn("source removal failed", "path", p, "error", err)
		}
	}
	if err := os.Remove(manifestPath); err != nil {
		return err
	}

	log.Info("bundle complete", "archive", archivePath, "files", len(present))
	return nil
}

func writeBundle(archivePath string, paths []string) error {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		f.Close()
		return err
	}
	tw := tar.NewWriter(zw)

	for _, p := range paths {
		if err := addToTar(tw, p); err != nil {
			tw.Close()
			zw.Close()
			f.Close()
			return fmt.Errorf("bundle %s: %w", p, err)
		}
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func addToTar(tw *tar.Writer, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(path)

	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// CompressFile compresses path to path.zst. When removeSource is true the
// original is deleted once the compressed file is safely closed; the run
// log, for example, is compressed with the original kept.
func CompressFile(path string, removeSource bool) (string, error) {
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()

	outPath := path + ".zst"
	out, err := os.Create(outPath)
	if err != nil {
		return "", err
	}

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}

	if _, err := io.Copy(zw, in); err != nil {
		zw.Close()
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(outPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(outPath)
		return "", err
	}

	if removeSource {
		if err := os.Remove(path); err != nil {
			return outPath, err
		}
	}
	return outPath, nil
}
