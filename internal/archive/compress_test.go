package archive

import (
	"archive/tar"
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/fieldcap/fieldcap/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func decompress(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestCompressFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := writeTestFile(t, dir, "seg.csv", "Timestamp,Counter,X\n1.5,0,42\n")

	out, err := CompressFile(src, true)
	if err != nil {
		t.Fatalf("CompressFile: %v", err)
	}
	if out != src+".zst" {
		t.Errorf("output = %q, want %q", out, src+".zst")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source not removed")
	}
	if got := decompress(t, out); string(got) != "Timestamp,Counter,X\n1.5,0,42\n" {
		t.Errorf("decompressed content = %q", got)
	}
}

func TestCompressFileKeepSource(t *testing.T) {
	dir := t.TempDir()
	src := writeTestFile(t, dir, "run.log", "log line\n")

	if _, err := CompressFile(src, false); err != nil {
		t.Fatalf("CompressFile: %v", err)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("source removed despite keep: %v", err)
	}
}

func TestCompressFilesRemovesManifestOnSuccess(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.csv", "aaa")
	b := writeTestFile(t, dir, "b.csv", "bbb")
	manifest := filepath.Join(dir, "m.txt")
	if err := WriteManifest(manifest, []string{a, b}); err != nil {
		t.Fatal(err)
	}

	if err := CompressFiles(manifest, 2, discardLogger()); err != nil {
		t.Fatalf("CompressFiles: %v", err)
	}

	for _, p := range []string{a, b, manifest} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still present", p)
		}
	}
	for _, p := range []string{a + ".zst", b + ".zst"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s missing: %v", p, err)
		}
	}
}

func TestCompressFilesPartialFailureKeepsManifest(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.csv", "aaa")
	missing := filepath.Join(dir, "never-written.csv")
	manifest := filepath.Join(dir, "m.txt")
	if err := WriteManifest(manifest, []string{a, missing}); err != nil {
		t.Fatal(err)
	}

	err := CompressFiles(manifest, 1, discardLogger())
	if !errors.Is(err, errors.ErrArchivePartial) {
		t.Fatalf("err = %v, want ErrArchivePartial", err)
	}
	if _, statErr := os.Stat(manifest); statErr != nil {
		t.Errorf("manifest removed despite partial failure: %v", statErr)
	}
	// The file that could be compressed was.
	if _, statErr := os.Stat(a + ".zst"); statErr != nil {
		t.Errorf("compressed output missing: %v", statErr)
	}
}

func TestCompressBatch(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.csv", "aaa")
	b := writeTestFile(t, dir, "b.csv", "bbbb")
	manifest := filepath.Join(dir, "m.txt")
	if err := WriteManifest(manifest, []string{a, b}); err != nil {
		t.Fatal(err)
	}
	archivePath := filepath.Join(dir, "batch.tar.zst")

	if err := CompressBatch(manifest, archivePath, discardLogger()); err != nil {
		t.Fatalf("CompressBatch: %v", err)
	}

	for _, p := range []string{a, b, manifest} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s still present", p)
		}
	}

	// The bundle holds both files by base name with their content intact.
	tr := tar.NewReader(bytes.NewReader(decompress(t, archivePath)))
	got := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatal(err)
		}
		got[hdr.Name] = string(content)
	}
	if got["a.csv"] != "aaa" || got["b.csv"] != "bbbb" {
		t.Errorf("bundle contents = %v", got)
	}
}

func TestCompressBatchNoFilesPresent(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "m.txt")
	if err := WriteManifest(manifest, []string{filepath.Join(dir, "gone.csv")}); err != nil {
		t.Fatal(err)
	}
	err := CompressBatch(manifest, filepath.Join(dir, "batch.tar.zst"), discardLogger())
	if !errors.Is(err, errors.ErrArchivePartial) {
		t.Errorf("err = %v, want ErrArchivePartial", err)
	}
}
