package kernel

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"
)

// Core is one simulated CPU: either idle (Proc == nil) or bound to a
// process it is driving one instruction per tick.
type Core struct {
	ID          int
	Proc        *Process
	QuantumLeft int
}

// TraceRecord is one executed-instruction event, enough for the
// csopesy-trace.txt writer (internal/tracelog) to render a full line
// without reaching back into kernel state.
type TraceRecord struct {
	Tick              uint64
	PID               int
	Name              string
	PC                int
	TotalInstructions int
	State             string
	Note              string
	Scheduler         SchedulerPolicy
	QuantumPos        int
	QuantumCycles     int
}

// TraceSink receives one record per instruction executed. Kernel does not
// depend on the tracelog package directly to avoid an import cycle; it
// depends on this interface instead.
type TraceSink interface {
	LogInstruction(rec TraceRecord)
}

// ProgramGenerator builds a random instruction sequence for batch
// auto-spawning. The default generator lives in this file; Scheduler offers
// no exported way to replace it.
type ProgramGenerator func(minIns, maxIns, memSize int) []Instruction

// Scheduler drives the tick loop: wake sleepers, release finished/violated
// cores, assign ready processes to idle cores (rr or fcfs), execute one
// instruction per bound core, and optionally auto-spawn batch processes.
// It touches both MemoryManager and ProcessTable every tick and always
// acquires them in that order (see Kernel's doc comment).
type Scheduler struct {
	cfg   Config
	clock *Clock
	pt    *ProcessTable
	mem   *MemoryManager
	trace TraceSink
	gen   ProgramGenerator

	cores []Core

	running           atomic.Bool
	autoCreateRunning atomic.Bool

	lastCreationTick      uint64
	lastCreationWallClock time.Time

	tickGuard *semaphore
}

// NewScheduler builds a scheduler with cfg.NumCPU idle cores.
func NewScheduler(cfg Config, clock *Clock, pt *ProcessTable, mem *MemoryManager, trace TraceSink) *Scheduler {
	cores := make([]Core, cfg.NumCPU)
	for i := range cores {
		cores[i].ID = i
	}
	s := &Scheduler{
		cfg:       cfg,
		clock:     clock,
		pt:        pt,
		mem:       mem,
		trace:     trace,
		gen:       defaultProgramGenerator,
		cores:     cores,
		tickGuard: newSemaphore(1),
	}
	s.running.Store(true)
	return s
}

// Cores returns a snapshot of core state for reporters. Safe to call
// without external locking; reads are not synchronized with the tick loop
// so values may be one tick stale.
func (s *Scheduler) Cores() []Core {
	out := make([]Core, len(s.cores))
	copy(out, s.cores)
	return out
}

// StartAutoCreate turns on batch auto-spawning (the "scheduler start" REPL
// command). The tick loop itself always runs once the kernel is up.
func (s *Scheduler) StartAutoCreate() { s.autoCreateRunning.Store(true) }

// StopAutoCreate turns off batch auto-spawning ("scheduler stop").
func (s *Scheduler) StopAutoCreate() { s.autoCreateRunning.Store(false) }

// AutoCreateEnabled reports whether batch auto-spawning is on.
func (s *Scheduler) AutoCreateEnabled() bool { return s.autoCreateRunning.Load() }

// Stop halts the tick loop entirely (used at shutdown).
func (s *Scheduler) Stop() { s.running.Store(false) }

// Run drives the tick loop until Stop is called. The inter-tick delay
// mirrors original_source/Project1/emulator.cpp's scheduler_loop_tick:
// a short delay while any process has not yet terminated or auto-create is
// on, a longer one otherwise.
func (s *Scheduler) Run() {
	for s.running.Load() {
		active := s.anyCoreBusy() || s.autoCreateRunning.Load()
		s.pt.Lock()
		for _, p := range s.pt.All() {
			if !p.State.Terminal() {
				active = true
				break
			}
		}
		s.pt.Unlock()
		if active {
			time.Sleep(5 * time.Millisecond)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
		tick := s.clock.Advance()
		s.RunTick(tick)
	}
}

func (s *Scheduler) anyCoreBusy() bool {
	for _, c := range s.cores {
		if c.Proc != nil {
			return true
		}
	}
	return false
}

// RunTick executes exactly one scheduling tick, in the documented order:
// wake, release, assign, execute, reassign (if execute released any core),
// auto-create. tickGuard keeps a slow tick's work from overlapping the next
// one if RunTick is ever invoked from more than one goroutine (Run's own
// loop never does, since it calls RunTick synchronously, but a caller
// driving RunTick directly alongside Run would otherwise race two passes
// over the same cores).
func (s *Scheduler) RunTick(tick uint64) {
	s.tickGuard.Wait()
	defer s.tickGuard.Signal()

	s.wakeSleepers()
	s.releaseFinishedCores()
	s.assignReadyToIdleCores()
	if s.executeBoundCores(tick) {
		s.assignReadyToIdleCores()
	}
	s.maybeAutoCreate(tick)
}

// releaseFinishedCores clears any core still bound to a process that has
// already reached a terminal state, before the tick's Assign pass runs.
func (s *Scheduler) releaseFinishedCores() {
	for i := range s.cores {
		core := &s.cores[i]
		if core.Proc != nil && core.Proc.State.Terminal() {
			core.Proc = nil
		}
	}
}

func (s *Scheduler) wakeSleepers() {
	s.pt.Lock()
	for _, p := range s.pt.All() {
		if p.State != Sleeping {
			continue
		}
		p.SleepCounter--
		if p.SleepCounter <= 0 {
			p.State = Ready
		}
	}
	s.pt.Unlock()
}

// executeBoundCores runs one instruction on every core currently bound to
// a process, and reports whether it released any core (finished, violated,
// slept, or quantum-preempted) — the caller reruns Assign when it does.
func (s *Scheduler) executeBoundCores(tick uint64) bool {
	released := false
	for i := range s.cores {
		core := &s.cores[i]
		if core.Proc == nil {
			continue
		}
		proc := core.Proc

		s.mem.Lock()
		s.pt.Lock()
		ctx := &ExecContext{Mem: s.mem, PT: s.pt, Tick: tick}
		pcBefore := proc.PC
		out := Step(proc, ctx)
		total := len(proc.Program)
		s.pt.Unlock()
		s.mem.Unlock()

		if s.trace != nil {
			rec := TraceRecord{
				Tick:              tick,
				PID:               proc.PID,
				Name:              proc.Name,
				PC:                pcBefore,
				TotalInstructions: total,
				State:             proc.State.String(),
				Note:              outcomeNote(out),
				Scheduler:         s.cfg.Scheduler,
				QuantumCycles:     s.cfg.QuantumCycles,
			}
			if s.cfg.Scheduler == RoundRobin && s.cfg.QuantumCycles > 0 {
				rec.QuantumPos = (pcBefore % s.cfg.QuantumCycles) + 1
			}
			s.trace.LogInstruction(rec)
		}

		switch out.Kind {
		case Terminate:
			proc.State = Finished
			core.Proc = nil
			released = true
		case Violation:
			proc.State = MemoryViolated
			core.Proc = nil
			released = true
		case SleepFor:
			proc.State = Sleeping
			proc.SleepCounter = out.SleepTicks
			core.Proc = nil
			released = true
		case ReplaceWith:
			// Step already spliced the expansion in; the core keeps the
			// process and runs its first expanded instruction next tick.
		case Advance, Stall:
			if s.cfg.Scheduler == RoundRobin {
				core.QuantumLeft--
				if core.QuantumLeft <= 0 {
					// Preempt only if some other process is waiting;
					// otherwise refill the quantum and keep the core.
					s.pt.Lock()
					all := s.pt.All()
					idx, otherReady := 0, false
					for j, other := range all {
						if other == proc {
							idx = j
						} else if other.State == Ready {
							otherReady = true
						}
					}
					if otherReady {
						proc.State = Ready
						core.Proc = nil
						released = true
						s.pt.RRCursor = (idx + 1) % len(all)
					} else {
						core.QuantumLeft = s.cfg.QuantumCycles
					}
					s.pt.Unlock()
				}
			}
		}

		if s.cfg.DelaysPerExec > 0 {
			time.Sleep(time.Duration(s.cfg.DelaysPerExec) * time.Millisecond)
		}
	}
	return released
}

func outcomeNote(out Outcome) string {
	switch out.Kind {
	case Terminate:
		return "terminated"
	case Violation:
		return "memory violation"
	case SleepFor:
		return "sleeping"
	case ReplaceWith:
		return "for-loop expanded"
	default:
		return "executed"
	}
}

func (s *Scheduler) assignReadyToIdleCores() {
	s.pt.Lock()
	defer s.pt.Unlock()

	all := s.pt.All()
	n := len(all)
	if n == 0 {
		return
	}

	for i := range s.cores {
		if s.cores[i].Proc != nil {
			continue
		}

		var chosen *Process
		if s.cfg.Scheduler == FirstComeServed {
			for _, p := range all {
				if p.State == Ready {
					chosen = p
					break
				}
			}
		} else {
			for k := 0; k < n; k++ {
				idx := (s.pt.RRCursor + k) % n
				if all[idx].State == Ready {
					chosen = all[idx]
					s.pt.RRCursor = (idx + 1) % n
					break
				}
			}
		}

		if chosen == nil {
			continue
		}
		chosen.State = Running
		s.cores[i].Proc = chosen
		s.cores[i].QuantumLeft = s.cfg.QuantumCycles
	}
}

// maybeAutoCreate spawns one new process if auto-create is on, the tick is
// a multiple of the batch frequency, no process was auto-created earlier in
// this same tick, and a 100ms wall-clock cooldown has elapsed (the latter
// keeps auto-spawn from flooding the table if the tick rate ever speeds up).
func (s *Scheduler) maybeAutoCreate(tick uint64) {
	if !s.autoCreateRunning.Load() {
		return
	}
	freq := uint64(s.cfg.BatchProcessFreq)
	if (freq > 0 && tick%freq != 0) || tick == s.lastCreationTick {
		return
	}
	if time.Since(s.lastCreationWallClock) < 100*time.Millisecond {
		return
	}

	memSize := randomPowerOfTwoInRange(s.cfg.MinMemPerProc, s.cfg.MaxMemPerProc)
	insCount := s.cfg.MinIns
	if s.cfg.MaxIns > s.cfg.MinIns {
		insCount += rand.Intn(s.cfg.MaxIns - s.cfg.MinIns + 1)
	}
	program := s.gen(insCount, insCount, memSize)

	s.mem.Lock()
	s.pt.Lock()
	name := autoProcessName(tick, s.pt.Len())
	p, err := s.pt.Add(name, memSize, program)
	if err == nil {
		s.mem.InitializePageTable(p, p.PagesRequired(s.cfg.MemPerFrame))
	}
	s.pt.Unlock()
	s.mem.Unlock()

	s.lastCreationTick = tick
	s.lastCreationWallClock = time.Now()
}

func autoProcessName(tick uint64, ordinal int) string {
	return "p" + strconv.Itoa(ordinal)
}

// randomPowerOfTwoInRange samples uniformly among the powers of two in
// [lo, hi] inclusive. This corrects a bug in the original generator, which
// drew a uniform integer in range without regard to the paging layout's
// requirement that every process size be a power of two.
func randomPowerOfTwoInRange(lo, hi int) int {
	var sizes []int
	for v := lo; v <= hi; v *= 2 {
		sizes = append(sizes, v)
		if v == 0 {
			break
		}
	}
	if len(sizes) == 0 {
		return lo
	}
	return sizes[rand.Intn(len(sizes))]
}

// defaultProgramGenerator builds a random small program in the style of
// original_source/Project1/emulator.cpp's generateDummyInstructions
// template pool, expressed directly as Instruction values rather than as
// text to be parsed.
func defaultProgramGenerator(minIns, maxIns, memSize int) []Instruction {
	count := minIns
	if maxIns > minIns {
		count += rand.Intn(maxIns - minIns + 1)
	}
	program := make([]Instruction, 0, count)
	for i := 0; i < count; i++ {
		switch rand.Intn(4) {
		case 0:
			program = append(program, &DeclareInstruction{Var: "x", Value: clampUint16(rand.Intn(100))})
		case 1:
			program = append(program, &AddInstruction{
				Dest: "x",
				Src1: Operand{Var: "x"},
				Src2: Operand{IsLiteral: true, Literal: 1},
			})
		case 2:
			program = append(program, &PrintInstruction{Parts: []PrintPart{
				{Literal: true, Text: "Value from: "},
				{Var: "x"},
			}})
		default:
			program = append(program, &SleepInstruction{Ticks: 1})
		}
	}
	return program
}
