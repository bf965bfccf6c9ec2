package governor

import "testing"

func TestUsageReportsHeap(t *testing.T) {
	g := New()
	u := g.Usage()
	if u.HeapAllocBytes == 0 {
		t.Error("HeapAllocBytes = 0")
	}
}

func TestReclaimRunsCollection(t *testing.T) {
	g := New()
	before := g.Usage()

	// Allocate enough that a forced collection has visible work.
	waste := make([][]byte, 64)
	for i := range waste {
		waste[i] = make([]byte, 1<<20)
	}
	_ = waste

	after := g.Reclaim()
	if after.NumGC <= before.NumGC {
		t.Errorf("NumGC did not advance: %d -> %d", before.NumGC, after.NumGC)
	}
}

func TestPeakRSSTracked(t *testing.T) {
	g := New()
	u := g.Reclaim()
	if u.RSSBytes != 0 && g.PeakRSS() == 0 {
		t.Error("PeakRSS not recorded")
	}
	if g.PeakRSS() < u.RSSBytes {
		t.Errorf("PeakRSS = %d below last observation %d", g.PeakRSS(), u.RSSBytes)
	}
}

func TestRSSMegabytes(t *testing.T) {
	u := Usage{RSSBytes: 512 * 1024 * 1024}
	if got := u.RSSMegabytes(); got != 512 {
		t.Errorf("RSSMegabytes() = %g, want 512", got)
	}
}
