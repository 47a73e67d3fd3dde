// Package configfile loads config.txt into a kernel.Config, generating a
// default file when none exists. Grounded on
// original_source/Project1/emulator.cpp's loadConfigFile/generateDefaultConfig.
package configfile

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
	"github.com/mike-jgo/csopesy-mp/internal/telemetry"
)

// defaultFileContents mirrors generateDefaultConfig's exact key set and
// values.
const defaultFileContents = `num-cpu 4
scheduler rr
quantum-cycles 2
batch-process-freq 3
min-ins 5
max-ins 10
delays-per-exec 1
max-overall-mem 16384
mem-per-frame 16
min-mem-per-proc 4096
max-mem-per-proc 4096
`

// Load reads path into a Config, generating a default file at path first
// if it doesn't exist. If the file cannot be read or parsed (for example a
// non-integer value), or the parsed config fails validation, it regenerates
// the default file and reloads once.
func Load(path string) (kernel.Config, error) {
	cfg, err := load(path)
	if err != nil || cfg.Validate() != nil {
		telemetry.For("configfile").Warn("invalid config, regenerating defaults")
		if err := generateDefault(path); err != nil {
			return kernel.Config{}, err
		}
		cfg, err = load(path)
		if err != nil {
			return kernel.Config{}, err
		}
	}
	return cfg, nil
}

func load(path string) (kernel.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return kernel.Config{}, fmt.Errorf("configfile: open %s: %w", path, err)
		}
		telemetry.For("configfile").WithField("path", path).Warn("config not found, generating default")
		if err := generateDefault(path); err != nil {
			return kernel.Config{}, err
		}
		f, err = os.Open(path)
		if err != nil {
			return kernel.Config{}, fmt.Errorf("configfile: open %s: %w", path, err)
		}
	}
	defer f.Close()

	cfg := kernel.DefaultConfig()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		key, value := fields[0], fields[1]
		if err := applyField(&cfg, key, value); err != nil {
			return kernel.Config{}, err
		}
	}
	if err := scanner.Err(); err != nil {
		return kernel.Config{}, fmt.Errorf("configfile: read %s: %w", path, err)
	}

	cfg.Scheduler = kernel.SchedulerPolicy(strings.ToLower(string(cfg.Scheduler)))
	if cfg.Scheduler != kernel.RoundRobin && cfg.Scheduler != kernel.FirstComeServed {
		telemetry.For("configfile").WithField("scheduler", cfg.Scheduler).Warn("unsupported scheduler, defaulting to rr")
		cfg.Scheduler = kernel.RoundRobin
	}
	return cfg, nil
}

func applyField(cfg *kernel.Config, key, value string) error {
	asInt := func() (int, error) {
		v, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("configfile: bad value for %s: %q", key, value)
		}
		return v, nil
	}

	switch key {
	case "num-cpu":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.NumCPU = v
	case "scheduler":
		cfg.Scheduler = kernel.SchedulerPolicy(value)
	case "quantum-cycles":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.QuantumCycles = v
	case "batch-process-freq":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.BatchProcessFreq = v
	case "min-ins":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MinIns = v
	case "max-ins":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MaxIns = v
	case "delays-per-exec":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.DelaysPerExec = v
	case "max-overall-mem":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MaxOverallMem = v
	case "mem-per-frame":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MemPerFrame = v
	case "min-mem-per-proc":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MinMemPerProc = v
	case "max-mem-per-proc":
		v, err := asInt()
		if err != nil {
			return err
		}
		cfg.MaxMemPerProc = v
	}
	return nil
}

func generateDefault(path string) error {
	if err := os.WriteFile(path, []byte(defaultFileContents), 0o644); err != nil {
		return fmt.Errorf("configfile: generate %s: %w", path, err)
	}
	telemetry.For("configfile").WithField("path", path).Info("default config.txt generated")
	return nil
}
