// Package report renders the text reports the REPL and status API expose
// over a kernel.QueryAPI snapshot: report-util, vmstat, and process-smi
// (both the global table and the single-process detail view). Formats are
// grounded on original_source/Project1/emulator.cpp's
// reportUtilCommand/vmstatCommand/processSmiGlobal/processSmiCommand.
package report

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
)

type stateCounts struct {
	running, ready, sleeping, finished, violated int
}

func countStates(procs []kernel.ProcessSnapshot) stateCounts {
	var c stateCounts
	for _, p := range procs {
		switch p.State {
		case "RUNNING":
			c.running++
		case "READY":
			c.ready++
		case "SLEEPING":
			c.sleeping++
		case "FINISHED":
			c.finished++
		case "MEMORY_VIOLATED":
			c.violated++
		}
	}
	return c
}

// Util renders the report-util console text.
func Util(q *kernel.QueryAPI, cfg kernel.Config) string {
	procs := q.Processes()
	c := countStates(procs)

	utilization := 0.0
	if cfg.NumCPU > 0 {
		utilization = float64(c.running) / float64(cfg.NumCPU) * 100.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== CPU UTILIZATION REPORT ===\n")
	fmt.Fprintf(&b, "CPU Utilization: %.2f%%\n", utilization)
	fmt.Fprintf(&b, "Cores Used: %d/%d\n", c.running, cfg.NumCPU)
	fmt.Fprintf(&b, "Ready: %d | Sleeping: %d | Finished: %d\n", c.ready, c.sleeping, c.finished)
	fmt.Fprintf(&b, "\n=== PROCESS DETAILS ===\n")
	for _, p := range procs {
		fmt.Fprintf(&b, "  %s [PID %d] - %s (%d/%d)\n", p.Name, p.PID, p.State, p.PC, p.TotalInstructions)
	}
	fmt.Fprintf(&b, "===============================\n")
	return b.String()
}

// SaveUtilLog writes the csopesy-log.txt rendition of the same report to
// path.
func SaveUtilLog(path string, q *kernel.QueryAPI, cfg kernel.Config) error {
	procs := q.Processes()
	c := countStates(procs)

	utilization := 0.0
	if cfg.NumCPU > 0 {
		utilization = float64(c.running) / float64(cfg.NumCPU) * 100.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "=== CSOPESY CPU UTILIZATION REPORT ===\n")
	fmt.Fprintf(&b, "CPU Utilization: %.2f%%\n", utilization)
	fmt.Fprintf(&b, "Cores Used: %d/%d\n", c.running, cfg.NumCPU)
	fmt.Fprintf(&b, "Ready: %d | Sleeping: %d | Finished: %d\n", c.ready, c.sleeping, c.finished)
	fmt.Fprintf(&b, "======================================\n")
	if len(procs) == 0 {
		fmt.Fprintf(&b, "No processes created.\n")
	} else {
		fmt.Fprintf(&b, "=== PROCESS TABLE ===\n")
		for _, p := range procs {
			fmt.Fprintf(&b, "  %s [PID %d] - %s (%d/%d)\n", p.Name, p.PID, p.State, p.PC, p.TotalInstructions)
		}
		fmt.Fprintf(&b, "=====================\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// VMStat renders the vmstat console text.
func VMStat(q *kernel.QueryAPI) string {
	v := q.VMStat()
	var b strings.Builder
	fmt.Fprintf(&b, "\n=== VMSTAT ===\n")
	fmt.Fprintf(&b, "%d K total memory\n", v.TotalMemory)
	fmt.Fprintf(&b, "%d K used memory\n", v.UsedMemory)
	fmt.Fprintf(&b, "%d K free memory\n", v.FreeMemory)
	fmt.Fprintf(&b, "%d idle cpu ticks\n", v.IdleCPUTicks)
	fmt.Fprintf(&b, "%d active cpu ticks\n", v.ActiveCPUTicks)
	fmt.Fprintf(&b, "%d pages paged in\n", v.PagesPagedIn)
	fmt.Fprintf(&b, "%d pages paged out\n", v.PagesPagedOut)
	fmt.Fprintf(&b, "=================\n")
	return b.String()
}

// ProcessSMIGlobal renders the global process-smi table, processes sorted
// by resident RAM usage, descending.
func ProcessSMIGlobal(q *kernel.QueryAPI, cfg kernel.Config) string {
	procs := q.Processes()
	if len(procs) == 0 {
		return "No processes created.\n"
	}

	c := countStates(procs)
	v := q.VMStat()

	utilization := 0.0
	if cfg.NumCPU > 0 {
		utilization = float64(c.running) / float64(cfg.NumCPU) * 100.0
	}

	type row struct {
		name     string
		pid      int
		state    string
		memReq   int
		pages    int
		resident int
		dirty    int
		ramUsed  int
	}
	rows := make([]row, len(procs))
	for i, p := range procs {
		rows[i] = row{
			name:     p.Name,
			pid:      p.PID,
			state:    displayState(p.State),
			memReq:   p.MemoryRequired,
			pages:    (p.MemoryRequired + cfg.MemPerFrame - 1) / cfg.MemPerFrame,
			resident: p.PagesResident,
			dirty:    p.PagesDirty,
			ramUsed:  p.PagesResident * cfg.MemPerFrame,
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ramUsed > rows[j].ramUsed })

	totalResident := 0
	for _, r := range rows {
		totalResident += r.ramUsed
	}

	memUtil := 0.0
	if v.TotalMemory > 0 {
		memUtil = float64(v.UsedMemory) / float64(v.TotalMemory) * 100.0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n========================== PROCESS-SMI (GLOBAL) ==========================\n")
	fmt.Fprintf(&b, "CPU Utilization: %.2f%%\n", utilization)
	fmt.Fprintf(&b, "Total Memory: %d bytes\n", v.TotalMemory)
	fmt.Fprintf(&b, "Used Memory:  %d bytes\n", v.UsedMemory)
	fmt.Fprintf(&b, "Free Memory:  %d bytes\n", v.FreeMemory)
	fmt.Fprintf(&b, "Memory Util: %.2f%%\n", memUtil)
	fmt.Fprintf(&b, "--------------------------------------------------------------------------\n")
	fmt.Fprintf(&b, "Total Resident Memory (All Processes): %d bytes\n", totalResident)
	fmt.Fprintf(&b, "--------------------------------------------------------------------------\n")
	fmt.Fprintf(&b, "%-12s%-7s%-12s%-10s%-8s%-10s%-8s%-10s\n",
		"Name", "PID", "State", "MemReq", "Pages", "Resident", "Dirty", "RAM Used")
	fmt.Fprintf(&b, "---------------------------------------------------------------------------\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s%-7d%-12s%-10d%-8d%-10d%-8d%-10d\n",
			r.name, r.pid, r.state, r.memReq, r.pages, r.resident, r.dirty, r.ramUsed)
	}
	fmt.Fprintf(&b, "===========================================================================\n")
	return b.String()
}

func displayState(state string) string {
	if state == "MEMORY_VIOLATED" {
		return "MEM VIOL"
	}
	return state
}

// ProcessSMIDetail renders the single-process screen's process-smi view.
func ProcessSMIDetail(q *kernel.QueryAPI, name string) (string, bool) {
	p, ok := q.FindProcess(name)
	if !ok {
		return "", false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Process SMI ===\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "PID: %d\n", p.PID)
	fmt.Fprintf(&b, "State: %s\n", p.State)
	fmt.Fprintf(&b, "Instruction progress: %d / %d\n", p.PC, p.TotalInstructions)

	if len(p.Logs) == 0 {
		fmt.Fprintf(&b, "Logs: (none)\n")
	} else {
		fmt.Fprintf(&b, "Logs:\n")
		for _, l := range p.Logs {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	if p.State == "FINISHED" {
		fmt.Fprintf(&b, "Process has finished execution.\n")
	}
	fmt.Fprintf(&b, "=====================\n")
	return b.String(), true
}
