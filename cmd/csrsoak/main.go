// Package main provides a randomized soak runner for the trap controller.
// It drives the controller with random inputs, checks its per-cycle
// guarantees and can profile the run.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/bradleyjkemp/memviz"
	"github.com/schollz/progressbar/v3"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/scenario"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	sc := scenario.DefaultSoakConfig()

	var (
		configPath string
		cpuProfile string
		memProfile string
		stateGraph string
		verbose    bool
		progress   bool
		stats      bool
	)

	flags := flag.NewFlagSet("csrsoak", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&configPath, "config", "", "Path to controller configuration JSON file")
	flags.Uint64Var(&sc.Cycles, "cycles", sc.Cycles, "Number of cycles to run")
	flags.Int64Var(&sc.Seed, "seed", sc.Seed, "Random seed")
	flags.IntVar(&sc.ExceptionRate, "exception-rate", sc.ExceptionRate, "Exception probability per cycle (percent)")
	flags.IntVar(&sc.IRQRate, "irq-rate", sc.IRQRate, "Interrupt line toggle probability per cycle (percent)")
	flags.IntVar(&sc.MemRate, "mem-rate", sc.MemRate, "Memory operation probability per cycle (percent)")
	flags.IntVar(&sc.HaltRate, "halt-rate", sc.HaltRate, "Halt request probability per cycle (percent)")
	flags.IntVar(&sc.ResumeRate, "resume-rate", sc.ResumeRate, "Resume request probability per debug-mode cycle (percent)")
	flags.IntVar(&sc.CSRRate, "csr-rate", sc.CSRRate, "CSR access probability per cycle (percent)")
	flags.IntVar(&sc.AcceptRate, "accept-rate", sc.AcceptRate, "Trap accept probability per cycle (percent)")
	flags.StringVar(&cpuProfile, "cpuprofile", "", "write cpu profile to file")
	flags.StringVar(&memProfile, "memprofile", "", "write memory profile to file")
	flags.StringVar(&stateGraph, "state-graph", "", "write the final controller state as a Graphviz graph to file")
	flags.BoolVar(&verbose, "v", false, "Verbose output")
	flags.BoolVar(&progress, "progress", false, "Show a progress bar")
	flags.BoolVar(&stats, "statsview", false, "Serve runtime statistics over HTTP while running")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	base := config.DefaultConfig()
	if configPath != "" {
		var err error
		base, err = config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}

	if stats {
		if !statsviewAvailable() {
			fmt.Fprintf(stderr, "statsview is not available in this build (use -tags statsview)\n")
			return 1
		}
		launchStatsview(stderr)
	}

	if cpuProfile != "" {
		f, err := os.Create(cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()

		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	opts := []scenario.RunnerOption{
		scenario.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))),
	}

	var bar *progressbar.ProgressBar
	if progress {
		bar = progressbar.NewOptions64(int64(sc.Cycles),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription("soak"),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
		opts = append(opts, scenario.WithCycleHook(func(uint64) {
			_ = bar.Add(1)
		}))
	}

	start := time.Now()
	result, err := scenario.NewRunner(base, opts...).Soak(sc)
	elapsed := time.Since(start)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if memProfile != "" {
		if err := writeMemProfile(memProfile); err != nil {
			fmt.Fprintf(stderr, "Error writing memory profile: %v\n", err)
			return 1
		}
	}

	if stateGraph != "" {
		if err := writeStateGraph(stateGraph, result); err != nil {
			fmt.Fprintf(stderr, "Error writing state graph: %v\n", err)
			return 1
		}
	}

	report(stdout, sc, result, elapsed)
	if !result.Passed() {
		return 1
	}
	return 0
}

func writeMemProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return pprof.WriteHeapProfile(f)
}

func writeStateGraph(path string, result *scenario.SoakResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	memviz.Map(f, &result.Final)
	return f.Close()
}

// maxReported caps the number of violations printed.
const maxReported = 20

func report(w io.Writer, sc scenario.SoakConfig, result *scenario.SoakResult, elapsed time.Duration) {
	stats := result.Stats

	fmt.Fprintf(w, "Seed: %d\n", sc.Seed)
	fmt.Fprintf(w, "Cycles: %d (%.0f cycles/s)\n", result.Cycles,
		float64(result.Cycles)/elapsed.Seconds())
	fmt.Fprintf(w, "Entries: %d\n", stats.Entries())
	fmt.Fprintf(w, "  Exceptions:    %d\n", stats.Exceptions)
	fmt.Fprintf(w, "  Interrupts:    %d\n", stats.Interrupts)
	fmt.Fprintf(w, "  Debug entries: %d\n", stats.DebugEntries)
	fmt.Fprintf(w, "  Resumes:       %d\n", stats.Resumes)
	fmt.Fprintf(w, "  Returns:       %d\n", stats.Returns)
	fmt.Fprintf(w, "Withdrawn requests: %d\n", stats.Withdrawn)
	fmt.Fprintf(w, "Illegal accesses:   %d\n", stats.IllegalAccesses)
	fmt.Fprintf(w, "Memory: %d loads, %d stores\n", result.LSU.Loads, result.LSU.Stores)

	if result.Passed() {
		fmt.Fprintf(w, "PASS: no invariant violations\n")
		return
	}

	fmt.Fprintf(w, "FAIL: %d invariant violations\n", len(result.Violations))
	for i, v := range result.Violations {
		if i == maxReported {
			fmt.Fprintf(w, "  ... %d more\n", len(result.Violations)-maxReported)
			break
		}
		fmt.Fprintf(w, "  %v\n", v)
	}
}
