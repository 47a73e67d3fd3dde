package kernel

import (
	"fmt"
	"sync"

	"github.com/Workiva/go-datastructures/bitarray"
)

// FrameEntry is one row of the global frame table: which process and page
// (if any) currently occupies a physical frame.
type FrameEntry struct {
	PID      int
	PageNo   int
	Occupied bool
}

// SegFaultError is returned by an access outside a process's declared
// address space. The scheduler turns this into a MEMORY_VIOLATED
// transition.
type SegFaultError struct {
	PID  int
	Addr int
}

func (e *SegFaultError) Error() string {
	return fmt.Sprintf("process %d: address %d out of bounds", e.PID, e.Addr)
}

// MemoryManager owns the frame table, physical RAM, and the backing store.
// It has its own mutex which Kernel always acquires before ProcessTable's
// — see Kernel's doc comment.
type MemoryManager struct {
	mu sync.Mutex

	cfg            Config
	valuesPerFrame int

	frameTable []FrameEntry
	free       bitarray.BitArray

	ram []uint16

	store *BackingStore

	pagesPagedIn  int
	pagesPagedOut int
}

// NewMemoryManager builds a manager over cfg.TotalFrames() frames of
// cfg.MemPerFrame bytes each, backed by store.
func NewMemoryManager(cfg Config, store *BackingStore) *MemoryManager {
	total := cfg.TotalFrames()
	valuesPerFrame := cfg.MemPerFrame
	m := &MemoryManager{
		cfg:            cfg,
		valuesPerFrame: valuesPerFrame,
		frameTable:     make([]FrameEntry, total),
		free:           bitarray.NewBitArray(uint64(total)),
		ram:            make([]uint16, total*valuesPerFrame),
		store:          store,
	}
	for i := 0; i < total; i++ {
		m.free.SetBit(uint64(i))
	}
	return m
}

func (m *MemoryManager) Lock()   { m.mu.Lock() }
func (m *MemoryManager) Unlock() { m.mu.Unlock() }

// TotalFrames returns the frame table size.
func (m *MemoryManager) TotalFrames() int {
	return len(m.frameTable)
}

// FreeFrameCount counts unoccupied frames by walking the occupancy bitmap.
func (m *MemoryManager) FreeFrameCount() int {
	n := 0
	for i := 0; i < len(m.frameTable); i++ {
		if set, _ := m.free.GetBit(uint64(i)); set {
			n++
		}
	}
	return n
}

// UsedMemory returns bytes currently held in occupied frames.
func (m *MemoryManager) UsedMemory() int {
	return (len(m.frameTable) - m.FreeFrameCount()) * m.cfg.MemPerFrame
}

// PagesPagedIn and PagesPagedOut are cumulative page-fault counters,
// reported by vmstat.
func (m *MemoryManager) PagesPagedIn() int  { return m.pagesPagedIn }
func (m *MemoryManager) PagesPagedOut() int { return m.pagesPagedOut }

// FrameSize returns the number of addressable values per frame/page, the
// spec's frame_size.
func (m *MemoryManager) FrameSize() int { return m.valuesPerFrame }

// InitializePageTable resets proc's page table to requiredPages entries,
// none yet faulted in. Called once at process-creation time. Caller must
// hold m locked.
func (m *MemoryManager) InitializePageTable(proc *Process, requiredPages int) {
	proc.PageTable = make(map[int]*PageTableEntry, requiredPages)
	for i := 0; i < requiredPages; i++ {
		proc.PageTable[i] = &PageTableEntry{FrameNo: -1}
	}
}

// IsPageResident reports whether virtualAddr's page currently occupies a
// physical frame, without updating its LRU timestamp. Caller must hold m
// locked.
func (m *MemoryManager) IsPageResident(proc *Process, virtualAddr int) bool {
	if virtualAddr < 0 || virtualAddr >= proc.MemoryRequired {
		return false
	}
	pageNo := virtualAddr / m.cfg.MemPerFrame
	pte, ok := proc.PageTable[pageNo]
	return ok && pte.Valid
}

// Read performs a 2-byte read from proc's virtual address space at addr.
// Caller must hold both m and pt locked, in that order.
func (m *MemoryManager) Read(pt *ProcessTable, proc *Process, addr int, tick uint64) (uint16, error) {
	return m.access(pt, proc, addr, tick, false, 0)
}

// Write performs a 2-byte write into proc's virtual address space at addr.
// Caller must hold both m and pt locked, in that order.
func (m *MemoryManager) Write(pt *ProcessTable, proc *Process, addr int, value uint16, tick uint64) error {
	_, err := m.access(pt, proc, addr, tick, true, value)
	return err
}

// access is value-addressed, not byte-addressed: each virtual address
// names one RAM slot directly, matching
// original_source/Project1/MemoryManager.cpp's access (which indexes ram
// by virtual_addr with no word-alignment requirement). Only bounds are
// checked, so virtual_addr = memory_required-1 always succeeds — the
// symbol table's 2-byte-per-variable stride is a process.go allocation
// convention, not a memory-manager alignment rule.
func (m *MemoryManager) access(pt *ProcessTable, proc *Process, addr int, tick uint64, write bool, writeVal uint16) (uint16, error) {
	if addr < 0 || addr >= proc.MemoryRequired {
		return 0, &SegFaultError{PID: proc.PID, Addr: addr}
	}

	pageNo := addr / m.cfg.MemPerFrame
	valueIndex := addr % m.cfg.MemPerFrame

	pte, ok := proc.PageTable[pageNo]
	if !ok {
		pte = &PageTableEntry{FrameNo: -1}
		proc.PageTable[pageNo] = pte
	}
	pte.LastAccessedTick = tick

	if !pte.Valid {
		if err := m.handlePageFault(pt, proc, pageNo, tick); err != nil {
			return 0, err
		}
	}

	base := pte.FrameNo*m.valuesPerFrame + valueIndex
	if write {
		m.ram[base] = writeVal
		pte.Dirty = true
		return 0, nil
	}
	return m.ram[base], nil
}

func (m *MemoryManager) handlePageFault(pt *ProcessTable, proc *Process, pageNo int, tick uint64) error {
	frame, err := m.allocateFrame(pt, tick)
	if err != nil {
		return err
	}

	data := m.store.Load(proc.PID, pageNo)
	base := frame * m.valuesPerFrame
	for i := 0; i < m.valuesPerFrame && i < len(data); i++ {
		m.ram[base+i] = data[i]
	}
	m.pagesPagedIn++

	m.frameTable[frame] = FrameEntry{PID: proc.PID, PageNo: pageNo, Occupied: true}
	m.free.ClearBit(uint64(frame))

	pte := proc.PageTable[pageNo]
	pte.FrameNo = frame
	pte.Valid = true
	pte.Dirty = false
	return nil
}

func (m *MemoryManager) allocateFrame(pt *ProcessTable, tick uint64) (int, error) {
	for i := 0; i < len(m.frameTable); i++ {
		if set, _ := m.free.GetBit(uint64(i)); set {
			return i, nil
		}
	}
	return m.evictVictim(pt, tick)
}

// evictVictim reclaims a frame using strict LRU over last-accessed ticks,
// writing its contents back to the backing store if dirty
// (original_source/Project1/MemoryManager.cpp's evictVictim).
func (m *MemoryManager) evictVictim(pt *ProcessTable, tick uint64) (int, error) {
	victim := -1
	var oldest uint64
	for i, fe := range m.frameTable {
		if !fe.Occupied {
			continue
		}
		owner, ok := pt.ByPID(fe.PID)
		if !ok {
			victim = i
			break
		}
		pte, ok := owner.PageTable[fe.PageNo]
		last := uint64(0)
		if ok {
			last = pte.LastAccessedTick
		}
		if victim == -1 || last < oldest {
			victim = i
			oldest = last
		}
	}
	if victim == -1 {
		victim = 0
	}

	fe := m.frameTable[victim]
	if fe.Occupied {
		owner, ok := pt.ByPID(fe.PID)
		if ok {
			pte := owner.PageTable[fe.PageNo]
			if pte != nil && pte.Dirty {
				base := victim * m.valuesPerFrame
				m.store.Store(fe.PID, fe.PageNo, m.ram[base:base+m.valuesPerFrame])
				m.pagesPagedOut++
			}
			if pte != nil {
				pte.Valid = false
				pte.FrameNo = -1
				pte.Dirty = false
			}
		}
	}

	m.frameTable[victim] = FrameEntry{}
	m.free.SetBit(uint64(victim))
	return victim, nil
}
