package kernel

import "testing"

func TestProcessTableAddAssignsIncreasingPIDs(t *testing.T) {
	pt := NewProcessTable()
	pt.Lock()
	p1, err := pt.Add("a", 64, nil)
	if err != nil {
		t.Fatalf("Add a: %v", err)
	}
	p2, err := pt.Add("b", 64, nil)
	if err != nil {
		t.Fatalf("Add b: %v", err)
	}
	pt.Unlock()

	if p1.PID != 1 || p2.PID != 2 {
		t.Fatalf("expected pids 1,2 got %d,%d", p1.PID, p2.PID)
	}
}

func TestProcessTableRejectsDuplicateName(t *testing.T) {
	pt := NewProcessTable()
	pt.Lock()
	defer pt.Unlock()
	if _, err := pt.Add("a", 64, nil); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := pt.Add("a", 64, nil); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestProcessTableLookups(t *testing.T) {
	pt := NewProcessTable()
	pt.Lock()
	p, _ := pt.Add("a", 64, nil)
	pt.Unlock()

	pt.Lock()
	defer pt.Unlock()

	if got, ok := pt.ByPID(p.PID); !ok || got != p {
		t.Fatal("ByPID lookup failed")
	}
	if got, ok := pt.ByName("a"); !ok || got != p {
		t.Fatal("ByName lookup failed")
	}
	if _, ok := pt.ByName("nope"); ok {
		t.Fatal("expected ByName miss")
	}
}

func TestResolveSymbolAddrAllocatesTwoByteStride(t *testing.T) {
	p := newProcess(1, "a", 64, nil)
	addr1 := p.resolveSymbolAddr("x")
	addr2 := p.resolveSymbolAddr("y")
	addr1Again := p.resolveSymbolAddr("x")

	if addr1 != 0 {
		t.Fatalf("first variable should land at address 0, got %d", addr1)
	}
	if addr2 != 2 {
		t.Fatalf("second variable should land at address 2, got %d", addr2)
	}
	if addr1Again != addr1 {
		t.Fatalf("re-resolving x should reuse its address, got %d want %d", addr1Again, addr1)
	}
}
