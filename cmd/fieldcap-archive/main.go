// Command fieldcap-archive compresses the segment files listed in a
// manifest. It is launched detached by fieldcapd so compression never
// competes with acquisition for the main process, but it works just as
// well by hand on a leftover manifest.
//
// Usage:
//
//	fieldcap-archive [-workers N] <manifest> [archive]
//
// With only a manifest, every listed file is compressed individually and
// replaced by its .zst form. With an archive path, all listed files are
// bundled into a single tar.zst. In both modes sources and the manifest
// are removed only after complete success.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fieldcap/fieldcap/config"
	"github.com/fieldcap/fieldcap/internal/archive"
	"github.com/fieldcap/fieldcap/internal/logging"
)

func main() {
	workers := flag.Int("workers", config.DefaultArchiveWorkers, "concurrent per-file compressions")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(os.Stderr, "usage: fieldcap-archive [-workers N] <manifest> [archive]")
		os.Exit(2)
	}
	manifest := args[0]

	logging.Init(slog.LevelInfo, false)
	logPath := filepath.Join(filepath.Dir(manifest), "archive.log")
	if detach, err := logging.AttachFile(logPath); err == nil {
		defer detach()
	}
	log := logging.Component("archive")

	var err error
	if len(args) == 2 {
		err = archive.CompressBatch(manifest, args[1], log)
	} else {
		err = archive.CompressFiles(manifest, *workers, log)
	}
	if err != nil {
		log.Error("archive incomplete", "manifest", manifest, "err", err)
		os.Exit(1)
	}
}
