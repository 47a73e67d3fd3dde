package kernel

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got %v", err)
	}
}

func TestValidateRejectsNonPowerOfTwoMemPerFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MemPerFrame = 17
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two mem-per-frame")
	}
}

func TestValidateRejectsZeroQuantumUnderRR(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuantumCycles = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero quantum-cycles under rr")
	}
}

func TestValidateAllowsZeroQuantumUnderFCFS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scheduler = FirstComeServed
	cfg.QuantumCycles = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fcfs shouldn't require a positive quantum, got %v", err)
	}
}

func TestValidateRejectsMaxOverallMemNotMultipleOfFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxOverallMem = 17
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max-overall-mem not a multiple of mem-per-frame")
	}
}

func TestTotalFrames(t *testing.T) {
	cfg := DefaultConfig()
	if got, want := cfg.TotalFrames(), cfg.MaxOverallMem/cfg.MemPerFrame; got != want {
		t.Fatalf("TotalFrames() = %d, want %d", got, want)
	}
}
