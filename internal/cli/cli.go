// Package cli implements the REPL: main-console and single-process-screen
// command dispatch over a running kernel.Kernel, keyed by command name in
// a handler registry.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mike-jgo/csopesy-mp/internal/kernel"
	"github.com/mike-jgo/csopesy-mp/internal/parser"
	"github.com/mike-jgo/csopesy-mp/internal/report"
	"github.com/mike-jgo/csopesy-mp/internal/telemetry"
)

// Mode is which command set the REPL currently dispatches into.
type Mode int

const (
	ModeMain Mode = iota
	ModeProcess
)

// HandlerFunc is one command's implementation. tokens[0] is the command
// name itself.
type HandlerFunc func(r *REPL, tokens []string)

// REPL is the interactive console. It owns no kernel state directly; every
// command goes through kernel.Kernel/QueryAPI.
type REPL struct {
	k   *kernel.Kernel
	q   *kernel.QueryAPI
	cfg kernel.Config

	mode           Mode
	currentProcess string

	in  *bufio.Reader
	out io.Writer

	traceLogPath string
	utilLogPath  string

	mainHandlers    map[string]HandlerFunc
	processHandlers map[string]HandlerFunc
}

// New builds a REPL over an already-booted kernel.
func New(k *kernel.Kernel, in io.Reader, out io.Writer, traceLogPath, utilLogPath string) *REPL {
	r := &REPL{
		k:            k,
		q:            kernel.NewQueryAPI(k),
		cfg:          k.Config,
		mode:         ModeMain,
		in:           bufio.NewReader(in),
		out:          out,
		traceLogPath: traceLogPath,
		utilLogPath:  utilLogPath,
	}
	r.mainHandlers = map[string]HandlerFunc{
		"help":         (*REPL).handleHelp,
		"screen":       (*REPL).handleScreen,
		"scheduler":    (*REPL).handleScheduler,
		"report-util":  (*REPL).handleReportUtil,
		"vmstat":       (*REPL).handleVMStat,
		"process-smi":  (*REPL).handleProcessSMIGlobal,
		"report-trace": (*REPL).handleReportTrace,
	}
	r.processHandlers = map[string]HandlerFunc{
		"process-smi": (*REPL).handleProcessSMIDetail,
		"step":        (*REPL).handleStep,
		"exit":        (*REPL).handleProcessExit,
	}
	return r
}

// Run reads and dispatches commands until "exit" is typed at the main
// prompt or input is exhausted.
func (r *REPL) Run() {
	for {
		r.printPrompt()
		line, err := r.in.ReadString('\n')
		if err != nil && line == "" {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		tokens := tokenize(line)
		if len(tokens) == 0 {
			continue
		}
		cmd := tokens[0]

		if r.mode == ModeMain && cmd == "exit" {
			return
		}

		handlers := r.mainHandlers
		if r.mode == ModeProcess {
			handlers = r.processHandlers
		}
		h, ok := handlers[cmd]
		if !ok {
			fmt.Fprintf(r.out, "Unknown command. Type 'help'.\n")
			continue
		}
		h(r, tokens)
	}
}

// tokenize splits a command line on whitespace, treating a double-quoted
// span as one token (quotes are kept in the returned token so callers that
// expect a quoted argument, like screen -c's instruction string, can strip
// them themselves). Mirrors original_source/Project1/emulator.cpp's
// tokenize.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
			cur.WriteRune(c)
		case (c == ' ' || c == '\t') && !inQuotes:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(c)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func (r *REPL) printPrompt() {
	if r.mode == ModeMain {
		fmt.Fprint(r.out, "CSOPESY> ")
		return
	}
	fmt.Fprintf(r.out, "%s> ", r.currentProcess)
}

func (r *REPL) handleHelp(tokens []string) {
	fmt.Fprint(r.out, "Available commands:\n"+
		"  screen -s <name> <mem>  - Create a process and enter its screen\n"+
		"  screen -c <name> <mem> \"<instr;instr;...>\" - Create a process from a custom instruction program\n"+
		"  screen -r <name>        - Resume an existing process's screen\n"+
		"  screen -ls              - List all processes\n"+
		"  scheduler start         - Begin automatic process creation\n"+
		"  scheduler stop          - Stop automatic process creation\n"+
		"  report-util             - Generate CPU report\n"+
		"  vmstat                  - Show memory/CPU tick counters\n"+
		"  process-smi             - Show the global process table\n"+
		"  report-trace            - Show execution trace log\n"+
		"  exit                    - Quit program\n")
}

func (r *REPL) handleScreen(tokens []string) {
	if len(tokens) < 2 {
		fmt.Fprint(r.out, "Usage: screen -s <name> <mem> | screen -r <name> | screen -ls\n")
		return
	}
	switch tokens[1] {
	case "-s":
		if len(tokens) < 4 {
			fmt.Fprint(r.out, "Usage: screen -s <name> <mem>\n")
			return
		}
		name := tokens[2]
		mem, err := strconv.Atoi(tokens[3])
		if err != nil {
			fmt.Fprintf(r.out, "Invalid memory size %q.\n", tokens[3])
			return
		}
		count := r.cfg.MinIns
		program := make([]kernel.Instruction, 0, count)
		for i := 0; i < count; i++ {
			program = append(program, &kernel.PrintInstruction{Parts: []kernel.PrintPart{
				{Literal: true, Text: fmt.Sprintf("Hello from %s", name)},
			}})
		}
		if _, err := r.k.CreateProcess(name, mem, program); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return
		}
		r.mode = ModeProcess
		r.currentProcess = name
	case "-r":
		if len(tokens) < 3 {
			fmt.Fprint(r.out, "Usage: screen -r <name>\n")
			return
		}
		name := tokens[2]
		if _, ok := r.q.FindProcess(name); !ok {
			fmt.Fprintf(r.out, "Process %q not found.\n", name)
			return
		}
		r.mode = ModeProcess
		r.currentProcess = name
	case "-ls":
		procs := r.q.Processes()
		if len(procs) == 0 {
			fmt.Fprint(r.out, "No processes created.\n")
			return
		}
		for _, p := range procs {
			fmt.Fprintf(r.out, "  %s [PID %d] - %s (%d/%d)\n", p.Name, p.PID, p.State, p.PC, p.TotalInstructions)
		}
	case "-c":
		if len(tokens) != 5 {
			fmt.Fprint(r.out, "Usage: screen -c <name> <mem> \"<instr;instr;...>\"\n")
			return
		}
		name := tokens[2]
		mem, err := strconv.Atoi(tokens[3])
		if err != nil {
			fmt.Fprintf(r.out, "Invalid memory size %q.\n", tokens[3])
			return
		}
		instrString := tokens[4]
		if len(instrString) >= 2 && instrString[0] == '"' && instrString[len(instrString)-1] == '"' {
			instrString = instrString[1 : len(instrString)-1]
		}
		source := strings.ReplaceAll(instrString, ";", "\n")
		if err := ParseAndCreate(r.k, name, mem, source); err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
			return
		}
		r.mode = ModeProcess
		r.currentProcess = name
	default:
		fmt.Fprint(r.out, "Usage: screen -s <name> <mem> | screen -c <name> <mem> \"<instr;instr;...>\" | screen -r <name> | screen -ls\n")
	}
}

func (r *REPL) handleScheduler(tokens []string) {
	if len(tokens) < 2 {
		fmt.Fprint(r.out, "Usage: scheduler start|stop\n")
		return
	}
	switch tokens[1] {
	case "start":
		r.k.Scheduler.StartAutoCreate()
		fmt.Fprint(r.out, "Automatic process creation started.\n")
	case "stop":
		r.k.Scheduler.StopAutoCreate()
		fmt.Fprint(r.out, "Automatic process creation stopped.\n")
	default:
		fmt.Fprint(r.out, "Usage: scheduler start|stop\n")
	}
}

func (r *REPL) handleReportUtil(tokens []string) {
	fmt.Fprint(r.out, report.Util(r.q, r.cfg))
	if err := report.SaveUtilLog(r.utilLogPath, r.q, r.cfg); err != nil {
		telemetry.ErrorLog.WithField("error", err).Error("failed to save report-util log")
		return
	}
	fmt.Fprintf(r.out, "Report saved to %s\n", r.utilLogPath)
}

func (r *REPL) handleVMStat(tokens []string) {
	fmt.Fprint(r.out, report.VMStat(r.q))
}

func (r *REPL) handleProcessSMIGlobal(tokens []string) {
	fmt.Fprint(r.out, report.ProcessSMIGlobal(r.q, r.cfg))
}

func (r *REPL) handleReportTrace(tokens []string) {
	data, err := os.ReadFile(r.traceLogPath)
	if err != nil {
		fmt.Fprint(r.out, "No trace log found.\n")
		return
	}
	fmt.Fprint(r.out, "\n=== EXECUTION TRACE ===\n")
	fmt.Fprint(r.out, string(data))
	fmt.Fprint(r.out, "=======================\n")
}

func (r *REPL) handleProcessSMIDetail(tokens []string) {
	text, ok := report.ProcessSMIDetail(r.q, r.currentProcess)
	if !ok {
		fmt.Fprintf(r.out, "Error: Process %s not found.\n", r.currentProcess)
		return
	}
	fmt.Fprint(r.out, text)
}

// handleStep single-steps the current process outside the normal
// scheduling tick, for manual debugging at the process screen.
func (r *REPL) handleStep(tokens []string) {
	r.k.Memory.Lock()
	r.k.ProcessTable.Lock()
	proc, ok := r.k.ProcessTable.ByName(r.currentProcess)
	if !ok {
		r.k.ProcessTable.Unlock()
		r.k.Memory.Unlock()
		fmt.Fprint(r.out, "No active process.\n")
		return
	}
	if proc.PC < len(proc.Program) {
		ctx := &kernel.ExecContext{Mem: r.k.Memory, PT: r.k.ProcessTable, Tick: r.k.Clock.Now()}
		kernel.Step(proc, ctx)
	}
	pcAfter := proc.PC
	name := proc.Name
	r.k.ProcessTable.Unlock()
	r.k.Memory.Unlock()

	fmt.Fprintf(r.out, "Executed instruction %d for process %s.\n", pcAfter, name)
}

func (r *REPL) handleProcessExit(tokens []string) {
	fmt.Fprint(r.out, "Exiting process screen...\n")
	r.mode = ModeMain
	r.currentProcess = ""
}

// ParseAndCreate loads instruction source text and registers it as a new
// process, for scripted process creation (e.g. from a file).
func ParseAndCreate(k *kernel.Kernel, name string, mem int, source string) error {
	program, err := parser.ParseProgram(source)
	if err != nil {
		return err
	}
	_, err = k.CreateProcess(name, mem, program)
	return err
}
