// Package tracelog implements the append-only csopesy-trace.txt writer,
// grounded on original_source/Project1/emulator.cpp's logInstructionTrace.
package tracelog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
)

// Writer appends one line per executed instruction to a file. It
// implements kernel.TraceSink.
type Writer struct {
	mu   sync.Mutex
	path string
}

// New opens (creating if needed) path for appending.
func New(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("tracelog: open %s: %w", path, err)
	}
	f.Close()
	return &Writer{path: path}, nil
}

// LogInstruction appends one formatted trace line.
func (w *Writer) LogInstruction(rec kernel.TraceRecord) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	line := fmt.Sprintf("[%s] [Tick %d%s] %s [PID %d] pc=%d/%d -> %s | State=%s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		rec.Tick,
		schedulerTag(rec),
		rec.Name, rec.PID,
		rec.PC, rec.TotalInstructions,
		rec.Note, rec.State,
	)
	f.WriteString(line)
}

func schedulerTag(rec kernel.TraceRecord) string {
	switch {
	case rec.Scheduler == kernel.RoundRobin && rec.QuantumCycles > 0:
		return fmt.Sprintf(" | Q%d/%d", rec.QuantumPos, rec.QuantumCycles)
	case rec.Scheduler == kernel.FirstComeServed:
		return " | FCFS"
	default:
		return ""
	}
}
