// Package governor forces memory reclamation between segments and reports
// process memory usage.
//
// This is advisory telemetry plus a safety valve against buffer growth
// across many segments; it has no effect on correctness, only on peak
// memory. Reclaim runs after each segment handoff, when the largest
// recently-freed allocations (the closed segment's sample slices) are
// eligible for collection.
package governor

import (
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/shirou/gopsutil/v4/process"

	"github.com/fieldcap/fieldcap/internal/logging"
)

// Usage is a point-in-time memory report.
type Usage struct {
	// RSSBytes is the process resident set size, 0 if unavailable.
	RSSBytes uint64

	// HeapAllocBytes is the Go heap in use.
	HeapAllocBytes uint64

	// NumGC is the cumulative collection count.
	NumGC uint32
}

// RSSMegabytes returns the resident set size in MiB.
func (u Usage) RSSMegabytes() float64 {
	return float64(u.RSSBytes) / 1024 / 1024
}

// Governor performs forced reclamation passes and memory reporting.
type Governor struct {
	log  *slog.Logger
	proc *process.Process

	peakRSS uint64
}

// New creates a governor for the current process. RSS telemetry degrades
// gracefully if the platform process reader is unavailable.
func New() *Governor {
	g := &Governor{log: logging.Component("governor")}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		g.proc = p
	}
	return g
}

// Reclaim forces a collection pass, returns freed pages to the OS, and
// records the resulting memory usage.
func (g *Governor) Reclaim() Usage {
	runtime.GC()
	debug.FreeOSMemory()

	u := g.Usage()
	if u.RSSBytes > g.peakRSS {
		g.peakRSS = u.RSSBytes
	}

	g.log.Info("memory reclaimed",
		"rss_mb", int(u.RSSMegabytes()),
		"heap_mb", int(float64(u.HeapAllocBytes)/1024/1024),
		"gc_count", u.NumGC)
	return u
}

// Usage reads current memory usage without forcing a collection.
func (g *Governor) Usage() Usage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	u := Usage{
		HeapAllocBytes: ms.HeapAlloc,
		NumGC:          ms.NumGC,
	}
	if g.proc != nil {
		if mi, err := g.proc.MemoryInfo(); err == nil {
			u.RSSBytes = mi.RSS
		}
	}
	return u
}

// PeakRSS returns the highest resident set size observed by Reclaim.
func (g *Governor) PeakRSS() uint64 {
	return g.peakRSS
}
