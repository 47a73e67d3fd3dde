package configfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
)

func TestLoadGeneratesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config file to be generated: %v", err)
	}
	if cfg != kernel.DefaultConfig() {
		t.Fatalf("Load() = %+v, want %+v", cfg, kernel.DefaultConfig())
	}
}

func TestLoadParsesCustomValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	contents := "num-cpu 8\nscheduler fcfs\nquantum-cycles 0\nbatch-process-freq 5\n" +
		"min-ins 2\nmax-ins 4\ndelays-per-exec 0\nmax-overall-mem 8192\n" +
		"mem-per-frame 32\nmin-mem-per-proc 32\nmax-mem-per-proc 8192\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.NumCPU != 8 {
		t.Fatalf("NumCPU = %d, want 8", cfg.NumCPU)
	}
	if cfg.Scheduler != kernel.FirstComeServed {
		t.Fatalf("Scheduler = %v, want FirstComeServed", cfg.Scheduler)
	}
	if cfg.MemPerFrame != 32 {
		t.Fatalf("MemPerFrame = %d, want 32", cfg.MemPerFrame)
	}
}

func TestLoadDefaultsToRRWhenSchedulerUnrecognized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	contents := "num-cpu 4\nscheduler bogus\nquantum-cycles 2\nbatch-process-freq 3\n" +
		"min-ins 5\nmax-ins 10\ndelays-per-exec 1\nmax-overall-mem 16384\n" +
		"mem-per-frame 16\nmin-mem-per-proc 4096\nmax-mem-per-proc 4096\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler != kernel.RoundRobin {
		t.Fatalf("Scheduler = %v, want RoundRobin fallback", cfg.Scheduler)
	}
}

func TestLoadRegeneratesDefaultsWhenConfigFailsValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.txt")
	// mem-per-frame of 3 is not a power of two: validation should fail and
	// the loader should fall back to regenerating the default file.
	contents := "num-cpu 4\nscheduler rr\nquantum-cycles 2\nbatch-process-freq 3\n" +
		"min-ins 5\nmax-ins 10\ndelays-per-exec 1\nmax-overall-mem 16384\n" +
		"mem-per-frame 3\nmin-mem-per-proc 4096\nmax-mem-per-proc 4096\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != kernel.DefaultConfig() {
		t.Fatalf("Load() = %+v, want defaults after regeneration", cfg)
	}
	regenerated, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(regenerated) != defaultFileContents {
		t.Fatal("expected config.txt to be overwritten with default contents")
	}
}
