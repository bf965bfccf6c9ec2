// Package archive hands finished segment files to an independent archiver
// process and implements the compression engine that process runs.
//
// The dispatcher is the sole concurrency boundary of a run: it transfers
// ownership of files by path, launches the archiver fire-and-forget, and
// never touches the files again. A reporter goroutine waits on the launched
// process and reports its exit status to the log only, never back into the
// acquisition loop.
package archive

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fieldcap/fieldcap/internal/errors"
	"github.com/fieldcap/fieldcap/internal/logging"
)

// Job is one archive batch: an ordered list of segment files, the manifest
// that lists them, and an optional bundled archive target. A job is
// consumed exactly once; the manifest is deleted by the archiver on full
// success, never by the dispatcher.
type Job struct {
	Paths        []string
	ManifestPath string
	ArchivePath  string // empty = per-file compression
	DispatchedAt time.Time
}

// Launcher starts the archiver for one job without waiting for completion.
type Launcher interface {
	Launch(job Job) error
}

// Dispatcher accumulates finished segment paths and dispatches archive
// batches. Used from the single acquisition goroutine; no locking needed.
type Dispatcher struct {
	dir       string
	threshold int
	bundle    bool
	launcher  Launcher
	log       *slog.Logger

	backlog    []string
	dispatches int
	failures   int
}

// Config configures a Dispatcher.
type Config struct {
	// Dir is where manifests (and bundled archives) are written.
	Dir string

	// Threshold is the backlog size above which a batch dispatches.
	Threshold int

	// Bundle selects tar-bundle mode: each batch produces one archive
	// file instead of per-file compressed outputs.
	Bundle bool

	// Launcher starts the archiver for each batch. Required.
	Launcher Launcher
}

// NewDispatcher creates a dispatcher writing manifests into cfg.Dir.
func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{
		dir:       cfg.Dir,
		threshold: cfg.Threshold,
		bundle:    cfg.Bundle,
		launcher:  cfg.Launcher,
		log:       logging.Component("dispatcher"),
	}
}

// Add appends a finished segment path to the backlog and dispatches a
// batch once the backlog exceeds the threshold. The boundary is inclusive:
// the dispatch fires on the transition from threshold to threshold+1.
func (d *Dispatcher) Add(path string) {
	d.backlog = append(d.backlog, path)
	if len(d.backlog) > d.threshold {
		d.dispatch()
	}
}

// Drain dispatches whatever remains in the backlog. Called when the run
// has no more segments to produce.
func (d *Dispatcher) Drain() {
	if len(d.backlog) > 0 {
		d.dispatch()
	}
}

// Backlog returns the number of paths awaiting dispatch.
func (d *Dispatcher) Backlog() int {
	return len(d.backlog)
}

// Dispatches returns how many batches have been dispatched.
func (d *Dispatcher) Dispatches() int {
	return d.dispatches
}

// dispatch writes the manifest and launches the archiver. The manifest is
// the durable form of the backlog: once it is on disk the in-memory
// backlog clears, so a failed launch loses nothing: the manifest stays in
// place for manual recovery and no source file is ever deleted here.
func (d *Dispatcher) dispatch() {
	job := Job{
		Paths:        d.backlog,
		DispatchedAt: time.Now(),
	}

	stamp := job.DispatchedAt.UTC().Format("20060102_150405")
	job.ManifestPath = filepath.Join(d.dir,
		fmt.Sprintf("files_to_archive_%s_%03d.txt", stamp, d.dispatches))
	if d.bundle {
		job.ArchivePath = filepath.Join(d.dir,
			fmt.Sprintf("segments_%s_%03d.tar.zst", stamp, d.dispatches))
	}

	if err := WriteManifest(job.ManifestPath, job.Paths); err != nil {
		// Backlog is kept; the next Add retries with a fresh manifest.
		d.failures++
		d.log.Error("manifest write failed", "manifest", job.ManifestPath, "error", err)
		return
	}

	d.backlog = nil
	d.dispatches++

	if err := d.launcher.Launch(job); err != nil {
		d.failures++
		d.log.Error("archiver launch failed; manifest kept for manual recovery",
			"manifest", job.ManifestPath, "files", len(job.Paths), "error", err)
		return
	}

	d.log.Info("archive batch dispatched",
		"manifest", job.ManifestPath, "files", len(job.Paths), "bundle", d.bundle)
}

// WriteManifest writes one absolute path per line, UTF-8, no header.
func WriteManifest(path string, paths []string) error {
	var b strings.Builder
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		b.WriteString(abs)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return errors.Wrapf(errors.ErrManifestWrite, "%s: %v", path, err)
	}
	return nil
}

// ReadManifest parses a manifest into its listed paths, skipping blank
// lines.
func ReadManifest(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			paths = append(paths, line)
		}
	}
	return paths, nil
}
