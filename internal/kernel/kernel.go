// Package kernel is the single-process core of the emulator: the tick
// clock, the process table, the demand-paged memory manager, the
// instruction set, and the scheduler that ties them together. Everything
// outside this package — config-file loading, instruction-source parsing,
// reporters, the trace log, the status API, and the REPL — is an external
// collaborator that only ever reaches in through Kernel and QueryAPI.
package kernel

import (
	"fmt"

	"github.com/mike-jgo/csopesy-mp/internal/telemetry"
)

// Kernel bundles the two independently-locked subsystems and the
// scheduler that drives them.
//
// Lock order: whenever a caller needs both locks, it must acquire
// Memory's before ProcessTable's (mem.Lock(); pt.Lock(); ...; pt.Unlock();
// mem.Unlock()). Every place in this package that takes both follows that
// order; breaking it is how you deadlock a tick against a REPL read.
type Kernel struct {
	Config       Config
	Clock        *Clock
	ProcessTable *ProcessTable
	Memory       *MemoryManager
	Store        *BackingStore
	Scheduler    *Scheduler
}

// New constructs a Kernel. backingStorePath is truncated and owned
// exclusively by the returned Kernel. trace may be nil if no trace log is
// wanted.
func New(cfg Config, backingStorePath string, trace TraceSink) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kernel: invalid config: %w", err)
	}

	store, err := NewBackingStore(backingStorePath, cfg.MemPerFrame)
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}

	clock := &Clock{}
	pt := NewProcessTable()
	mem := NewMemoryManager(cfg, store)
	sched := NewScheduler(cfg, clock, pt, mem, trace)

	telemetry.For("kernel").WithField("num-cpu", cfg.NumCPU).Info("kernel initialized")

	return &Kernel{
		Config:       cfg,
		Clock:        clock,
		ProcessTable: pt,
		Memory:       mem,
		Store:        store,
		Scheduler:    sched,
	}, nil
}

// CreateProcess registers a new process with the given program and memory
// requirement. It returns an error, with no state change, if the requested
// memory isn't a legal power-of-two size within
// [Config.MinMemPerProc, Config.MaxMemPerProc] or if the name is already
// taken.
func (k *Kernel) CreateProcess(name string, memRequired int, program []Instruction) (*Process, error) {
	if err := k.Config.ValidateProcessMemory(memRequired); err != nil {
		return nil, err
	}
	k.Memory.Lock()
	defer k.Memory.Unlock()
	k.ProcessTable.Lock()
	defer k.ProcessTable.Unlock()
	p, err := k.ProcessTable.Add(name, memRequired, program)
	if err != nil {
		return nil, err
	}
	k.Memory.InitializePageTable(p, p.PagesRequired(k.Config.MemPerFrame))
	telemetry.For("kernel").WithFields(loggingFields(p)).Info("process created")
	return p, nil
}

func loggingFields(p *Process) map[string]interface{} {
	return map[string]interface{}{
		"pid":  p.PID,
		"name": p.Name,
		"mem":  p.MemoryRequired,
	}
}

// Run starts the scheduler's tick loop. It blocks until Shutdown is
// called, so callers run it in its own goroutine.
func (k *Kernel) Run() {
	k.Scheduler.Run()
}

// Shutdown stops the tick loop. It does not wait for in-flight ticks to
// drain; callers that need a clean stop should give Run's goroutine a
// moment to exit.
func (k *Kernel) Shutdown() {
	k.Scheduler.Stop()
}
