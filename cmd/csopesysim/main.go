// Command csopesysim is the single-binary entrypoint: load config.txt,
// boot the kernel, start the scheduler's tick loop and the optional status
// API in their own goroutines, then drive the REPL on the main goroutine
// until the user exits or Ctrl+C is received.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mike-jgo/csopesy-mp/internal/cli"
	"github.com/mike-jgo/csopesy-mp/internal/configfile"
	"github.com/mike-jgo/csopesy-mp/internal/kernel"
	"github.com/mike-jgo/csopesy-mp/internal/statusapi"
	"github.com/mike-jgo/csopesy-mp/internal/telemetry"
	"github.com/mike-jgo/csopesy-mp/internal/tracelog"
)

func main() {
	configPath := flag.String("config", "config.txt", "path to config.txt")
	backingStorePath := flag.String("backing-store", "csopesy-backing-store.txt", "path to the backing store mirror file")
	traceLogPath := flag.String("trace-log", "csopesy-trace.txt", "path to the instruction trace log")
	utilLogPath := flag.String("util-log", "csopesy-log.txt", "path to the report-util log")
	statusAddr := flag.String("status-addr", "", "address to serve the read-only status API on (empty disables it)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	telemetry.Init("csopesysim", *logLevel)
	telemetry.InfoLog.Info("csopesysim starting")

	cfg, err := configfile.Load(*configPath)
	if err != nil {
		telemetry.ErrorLog.WithField("error", err).Error("failed to load config")
		os.Exit(1)
	}

	trace, err := tracelog.New(*traceLogPath)
	if err != nil {
		telemetry.ErrorLog.WithField("error", err).Error("failed to open trace log")
		os.Exit(1)
	}

	k, err := kernel.New(cfg, *backingStorePath, trace)
	if err != nil {
		telemetry.ErrorLog.WithField("error", err).Error("failed to build kernel")
		os.Exit(1)
	}

	go k.Run()

	if *statusAddr != "" {
		q := kernel.NewQueryAPI(k)
		srv := statusapi.New(*statusAddr, q)
		go func() {
			if err := srv.Start(); err != nil {
				telemetry.ErrorLog.WithField("error", err).Error("status api stopped")
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\ncsopesysim shutting down...")
		k.Shutdown()
		os.Exit(0)
	}()

	repl := cli.New(k, os.Stdin, os.Stdout, *traceLogPath, *utilLogPath)
	repl.Run()
	k.Shutdown()
}
