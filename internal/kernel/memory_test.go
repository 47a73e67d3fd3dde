package kernel

import (
	"path/filepath"
	"testing"
)

func testMemoryManager(t *testing.T, totalFrames, memPerFrame int) (*MemoryManager, *ProcessTable) {
	t.Helper()
	cfg := Config{
		NumCPU: 1, Scheduler: RoundRobin, QuantumCycles: 1,
		MinIns: 1, MaxIns: 1, MemPerFrame: memPerFrame,
		MaxOverallMem: totalFrames * memPerFrame,
		MinMemPerProc: memPerFrame, MaxMemPerProc: memPerFrame * 8,
	}
	store, err := NewBackingStore(filepath.Join(t.TempDir(), "store.txt"), memPerFrame)
	if err != nil {
		t.Fatalf("NewBackingStore: %v", err)
	}
	pt := NewProcessTable()
	return NewMemoryManager(cfg, store), pt
}

func TestMemoryReadWriteRoundTrip(t *testing.T) {
	mem, pt := testMemoryManager(t, 4, 16)
	pt.Lock()
	p, _ := pt.Add("a", 32, nil)
	pt.Unlock()

	if err := mem.Write(pt, p, 0, 42, 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	v, err := mem.Read(pt, p, 0, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != 42 {
		t.Fatalf("Read() = %d, want 42", v)
	}
}

func TestMemoryAccessOutOfBoundsSegfaults(t *testing.T) {
	mem, pt := testMemoryManager(t, 4, 16)
	pt.Lock()
	p, _ := pt.Add("a", 16, nil)
	pt.Unlock()

	_, err := mem.Read(pt, p, 16, 1)
	if err == nil {
		t.Fatal("expected segfault reading past declared memory")
	}
	if _, ok := err.(*SegFaultError); !ok {
		t.Fatalf("expected *SegFaultError, got %T", err)
	}
}

func TestMemoryLastAddressBeforeMemoryRequiredSucceeds(t *testing.T) {
	// Addressing is value-granular, not word-aligned: memory_required-1 is
	// always a valid (odd, for a power-of-two size) address.
	mem, pt := testMemoryManager(t, 4, 16)
	pt.Lock()
	p, _ := pt.Add("a", 4, nil)
	pt.Unlock()

	if err := mem.Write(pt, p, 3, 9, 1); err != nil {
		t.Fatalf("Write at memory_required-1: %v", err)
	}
	v, err := mem.Read(pt, p, 3, 2)
	if err != nil {
		t.Fatalf("Read at memory_required-1: %v", err)
	}
	if v != 9 {
		t.Fatalf("Read() = %d, want 9", v)
	}

	if _, err := mem.Read(pt, p, 4, 3); err == nil {
		t.Fatal("expected segfault reading at memory_required")
	}
}

func TestMemoryEvictsLRUWhenFramesExhausted(t *testing.T) {
	// 2 frames of 4 values each; two processes each touching one page
	// fully uses the frame table, so a third access must evict.
	mem, pt := testMemoryManager(t, 2, 4)
	pt.Lock()
	p1, _ := pt.Add("a", 4, nil)
	p2, _ := pt.Add("b", 4, nil)
	p3, _ := pt.Add("c", 4, nil)
	pt.Unlock()

	if err := mem.Write(pt, p1, 0, 1, 1); err != nil {
		t.Fatalf("write p1: %v", err)
	}
	if err := mem.Write(pt, p2, 0, 2, 2); err != nil {
		t.Fatalf("write p2: %v", err)
	}
	// both frames now occupied; p1's page is the least recently used.
	if err := mem.Write(pt, p3, 0, 3, 3); err != nil {
		t.Fatalf("write p3: %v", err)
	}

	if mem.FreeFrameCount() != 0 {
		t.Fatalf("expected 0 free frames, got %d", mem.FreeFrameCount())
	}

	// p1's page should have been evicted (written back, since it was dirty).
	pte := p1.PageTable[0]
	if pte == nil || pte.Valid {
		t.Fatal("expected p1's page 0 to have been evicted")
	}

	// reading it back should page it in again, evicting someone else.
	v, err := mem.Read(pt, p1, 0, 4)
	if err != nil {
		t.Fatalf("Read after eviction: %v", err)
	}
	if v != 1 {
		t.Fatalf("Read() after page-in = %d, want 1 (backing store round trip)", v)
	}
	if mem.PagesPagedOut() == 0 {
		t.Fatal("expected at least one page to have been paged out")
	}
}
