package kernel

import "sync"

// ProcessTable is the single authoritative collection of processes, in
// creation order. It is guarded by one mutex (processTableMutex in the
// spec's terms); callers that also need memoryMutex must acquire memory's
// lock first — see Kernel's doc comment for the lock order.
//
// ProcessTable exposes Lock/Unlock directly rather than wrapping every
// operation, because the scheduler's tick loop needs to hold the lock
// across several logically-related steps (scan for ready, bind to a core,
// update the RR cursor) without re-entering it per step.
type ProcessTable struct {
	mu sync.Mutex

	byOrder []*Process
	byPID   map[int]*Process
	byName  map[string]*Process

	nextPID  int
	RRCursor int
}

// NewProcessTable returns an empty table. pid 1 is the first pid handed out.
func NewProcessTable() *ProcessTable {
	return &ProcessTable{
		byPID:   make(map[int]*Process),
		byName:  make(map[string]*Process),
		nextPID: 1,
	}
}

func (t *ProcessTable) Lock()   { t.mu.Lock() }
func (t *ProcessTable) Unlock() { t.mu.Unlock() }

// Add creates and inserts a new process. Caller must hold the lock. Returns
// an error if name is already in use (process names are unique).
func (t *ProcessTable) Add(name string, memRequired int, program []Instruction) (*Process, error) {
	if _, exists := t.byName[name]; exists {
		return nil, &DuplicateNameError{Name: name}
	}
	p := newProcess(t.nextPID, name, memRequired, program)
	t.nextPID++
	t.byOrder = append(t.byOrder, p)
	t.byPID[p.PID] = p
	t.byName[p.Name] = p
	return p, nil
}

// ByPID looks up a process by pid. Caller must hold the lock.
func (t *ProcessTable) ByPID(pid int) (*Process, bool) {
	p, ok := t.byPID[pid]
	return p, ok
}

// ByName looks up a process by name. Caller must hold the lock.
func (t *ProcessTable) ByName(name string) (*Process, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// All returns the live process slice in creation order. Caller must hold
// the lock; the slice itself must not be mutated by the caller (append a
// defensive copy if retaining it beyond the lock).
func (t *ProcessTable) All() []*Process {
	return t.byOrder
}

// Len returns the number of processes ever created (includes terminated
// ones; the table never removes an entry). Caller must hold the lock.
func (t *ProcessTable) Len() int {
	return len(t.byOrder)
}

// DuplicateNameError is returned by Add when a process name collides with
// an existing one.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return "process name already in use: " + e.Name
}
