package kernel

import (
	"path/filepath"
	"testing"
)

func testScheduler(t *testing.T, cfg Config) (*Scheduler, *ProcessTable, *MemoryManager) {
	t.Helper()
	store, err := NewBackingStore(filepath.Join(t.TempDir(), "store.txt"), cfg.MemPerFrame)
	if err != nil {
		t.Fatalf("NewBackingStore: %v", err)
	}
	clock := &Clock{}
	pt := NewProcessTable()
	mem := NewMemoryManager(cfg, store)
	return NewScheduler(cfg, clock, pt, mem, nil), pt, mem
}

func declareProgram(n int) []Instruction {
	program := make([]Instruction, n)
	for i := range program {
		program[i] = &DeclareInstruction{Var: "x", Value: uint16(i)}
	}
	return program
}

func TestSchedulerRRRunsProcessToCompletion(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: RoundRobin, QuantumCycles: 2,
		MinIns: 1, MaxIns: 1, MemPerFrame: 16,
		MaxOverallMem: 64, MinMemPerProc: 16, MaxMemPerProc: 64,
	}
	sched, pt, _ := testScheduler(t, cfg)

	pt.Lock()
	p, _ := pt.Add("solo", 32, declareProgram(4))
	pt.Unlock()

	for tick := uint64(1); tick <= 50 && p.State != Finished; tick++ {
		sched.RunTick(tick)
	}

	if p.State != Finished {
		t.Fatalf("process never finished, final state %v", p.State)
	}
}

func TestSchedulerRRPreemptsAtQuantumExpiry(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: RoundRobin, QuantumCycles: 1,
		MinIns: 1, MaxIns: 1, MemPerFrame: 16,
		MaxOverallMem: 64, MinMemPerProc: 16, MaxMemPerProc: 64,
	}
	sched, pt, _ := testScheduler(t, cfg)

	pt.Lock()
	a, _ := pt.Add("a", 32, declareProgram(5))
	b, _ := pt.Add("b", 32, declareProgram(5))
	pt.Unlock()

	sawBothRunning := false
	for tick := uint64(1); tick <= 30; tick++ {
		sched.RunTick(tick)
		if a.State == Running && b.State == Ready || b.State == Running && a.State == Ready {
			sawBothRunning = true
		}
		if a.State == Finished && b.State == Finished {
			break
		}
	}

	if !sawBothRunning {
		t.Fatal("expected to observe interleaving between the two processes under quantum=1")
	}
	if a.State != Finished || b.State != Finished {
		t.Fatalf("both processes should finish, got a=%v b=%v", a.State, b.State)
	}
}

func TestSchedulerFCFSRunsOneProcessAtATimeToCompletion(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: FirstComeServed, QuantumCycles: 0,
		MinIns: 1, MaxIns: 1, MemPerFrame: 16,
		MaxOverallMem: 64, MinMemPerProc: 16, MaxMemPerProc: 64,
	}
	sched, pt, _ := testScheduler(t, cfg)

	pt.Lock()
	a, _ := pt.Add("a", 32, declareProgram(3))
	b, _ := pt.Add("b", 32, declareProgram(3))
	pt.Unlock()

	bStartedBeforeAFinished := false
	for tick := uint64(1); tick <= 30; tick++ {
		sched.RunTick(tick)
		if a.State != Finished && b.State != Ready && b.State != Finished {
			// b is running or sleeping while a hasn't finished: FCFS violated.
			bStartedBeforeAFinished = true
		}
		if a.State == Finished && b.State == Finished {
			break
		}
	}

	if bStartedBeforeAFinished {
		t.Fatal("fcfs should not start the second process before the first finishes")
	}
	if a.State != Finished || b.State != Finished {
		t.Fatalf("both processes should finish, got a=%v b=%v", a.State, b.State)
	}
}

func TestSchedulerSleepThenWake(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: RoundRobin, QuantumCycles: 10,
		MinIns: 1, MaxIns: 1, MemPerFrame: 16,
		MaxOverallMem: 64, MinMemPerProc: 16, MaxMemPerProc: 64,
	}
	sched, pt, _ := testScheduler(t, cfg)

	pt.Lock()
	p, _ := pt.Add("sleepy", 32, []Instruction{
		&SleepInstruction{Ticks: 2},
		&DeclareInstruction{Var: "x", Value: 1},
	})
	pt.Unlock()

	sawSleeping := false
	for tick := uint64(1); tick <= 30 && p.State != Finished; tick++ {
		sched.RunTick(tick)
		if p.State == Sleeping {
			sawSleeping = true
		}
	}

	if !sawSleeping {
		t.Fatal("expected process to pass through Sleeping after SLEEP instruction")
	}
	if p.State != Finished {
		t.Fatalf("process never finished after waking, final state %v", p.State)
	}
}

func TestSchedulerMemoryViolationTerminatesProcess(t *testing.T) {
	cfg := Config{
		NumCPU: 1, Scheduler: RoundRobin, QuantumCycles: 10,
		MinIns: 1, MaxIns: 1, MemPerFrame: 16,
		MaxOverallMem: 64, MinMemPerProc: 16, MaxMemPerProc: 64,
	}
	sched, pt, _ := testScheduler(t, cfg)

	pt.Lock()
	p, _ := pt.Add("bad", 16, []Instruction{
		&WriteInstruction{Addr: 9000, Value: Operand{IsLiteral: true, Literal: 1}},
	})
	pt.Unlock()

	for tick := uint64(1); tick <= 10 && p.State != MemoryViolated; tick++ {
		sched.RunTick(tick)
	}

	if p.State != MemoryViolated {
		t.Fatalf("expected MemoryViolated, got %v", p.State)
	}
}
