package kernel

// ProcessSnapshot is a read-only, point-in-time copy of one process's
// externally-visible state, used by report-util/process-smi and the
// status API. Snapshots never alias the live Process.
type ProcessSnapshot struct {
	PID               int
	Name              string
	State             string
	PC                int
	TotalInstructions int
	MemoryRequired    int
	PagesResident     int
	PagesDirty        int
	Logs              []string
}

// CoreSnapshot reports one CPU core's current occupant, if any.
type CoreSnapshot struct {
	ID       int
	Busy     bool
	ProcPID  int
	ProcName string
}

// VMStatSnapshot mirrors the fields original_source/Project1/emulator.cpp's
// vmstatCommand prints.
type VMStatSnapshot struct {
	TotalMemory    int
	UsedMemory     int
	FreeMemory     int
	IdleCPUTicks   uint64
	ActiveCPUTicks uint64
	PagesPagedIn   int
	PagesPagedOut  int
}

// QueryAPI is the read-only window onto kernel state: it takes both locks
// just long enough to copy out a snapshot and never returns anything that
// aliases live kernel memory. It is the only thing reporters, the status
// API, and the REPL's read commands are allowed to touch.
type QueryAPI struct {
	k *Kernel
}

// NewQueryAPI wraps k for read-only access.
func NewQueryAPI(k *Kernel) *QueryAPI {
	return &QueryAPI{k: k}
}

// snapshotOf copies out a process's externally-visible state. mem is used
// via IsPageResident to count resident pages rather than trusting
// PageTable's Valid bit directly. Caller must hold mem and the process
// table locked.
func snapshotOf(mem *MemoryManager, p *Process) ProcessSnapshot {
	resident, dirty := 0, 0
	for pageNo, pte := range p.PageTable {
		if mem.IsPageResident(p, pageNo*mem.FrameSize()) {
			resident++
			if pte.Dirty {
				dirty++
			}
		}
	}
	logs := make([]string, len(p.Logs))
	copy(logs, p.Logs)
	return ProcessSnapshot{
		PID:               p.PID,
		Name:              p.Name,
		State:             p.State.String(),
		PC:                p.PC,
		TotalInstructions: len(p.Program),
		MemoryRequired:    p.MemoryRequired,
		PagesResident:     resident,
		PagesDirty:        dirty,
		Logs:              logs,
	}
}

// Processes returns a snapshot of every process ever created, in creation
// order.
func (q *QueryAPI) Processes() []ProcessSnapshot {
	q.k.Memory.Lock()
	defer q.k.Memory.Unlock()
	q.k.ProcessTable.Lock()
	defer q.k.ProcessTable.Unlock()

	all := q.k.ProcessTable.All()
	out := make([]ProcessSnapshot, len(all))
	for i, p := range all {
		out[i] = snapshotOf(q.k.Memory, p)
	}
	return out
}

// FindProcess looks up a single process by name.
func (q *QueryAPI) FindProcess(name string) (ProcessSnapshot, bool) {
	q.k.Memory.Lock()
	defer q.k.Memory.Unlock()
	q.k.ProcessTable.Lock()
	defer q.k.ProcessTable.Unlock()

	p, ok := q.k.ProcessTable.ByName(name)
	if !ok {
		return ProcessSnapshot{}, false
	}
	return snapshotOf(q.k.Memory, p), true
}

// Cores reports the current occupant of each CPU core.
func (q *QueryAPI) Cores() []CoreSnapshot {
	cores := q.k.Scheduler.Cores()
	out := make([]CoreSnapshot, len(cores))
	for i, c := range cores {
		out[i] = CoreSnapshot{ID: c.ID}
		if c.Proc != nil {
			out[i].Busy = true
			out[i].ProcPID = c.Proc.PID
			out[i].ProcName = c.Proc.Name
		}
	}
	return out
}

// VMStat reports system-wide memory and CPU tick counters.
func (q *QueryAPI) VMStat() VMStatSnapshot {
	tick := q.k.Clock.Now()

	q.k.Memory.Lock()
	used := q.k.Memory.UsedMemory()
	total := q.k.Memory.TotalFrames() * q.k.Config.MemPerFrame
	pagedIn := q.k.Memory.PagesPagedIn()
	pagedOut := q.k.Memory.PagesPagedOut()
	q.k.Memory.Unlock()

	numCPU := uint64(len(q.k.Scheduler.Cores()))
	return VMStatSnapshot{
		TotalMemory:    total,
		UsedMemory:     used,
		FreeMemory:     total - used,
		IdleCPUTicks:   tick * numCPU,
		ActiveCPUTicks: tick,
		PagesPagedIn:   pagedIn,
		PagesPagedOut:  pagedOut,
	}
}
