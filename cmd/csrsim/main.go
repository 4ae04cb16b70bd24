// Package main provides the entry point for csrsim.
// csrsim runs trap controller scenarios and reports their outcome.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/sarchlab/rvcsr/config"
	"github.com/sarchlab/rvcsr/scenario"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	configPath string
	dumpConfig string
	verbose    bool
	progress   bool
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options

	flags := flag.NewFlagSet("csrsim", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.configPath, "config", "", "Path to controller configuration JSON file")
	flags.StringVar(&opts.dumpConfig, "dump-config", "", "Write the base configuration as JSON to this path")
	flags.BoolVar(&opts.verbose, "v", false, "Verbose output")
	flags.BoolVar(&opts.progress, "progress", false, "Show a progress bar")

	if err := flags.Parse(args); err != nil {
		return 1
	}

	base := config.DefaultConfig()
	if opts.configPath != "" {
		var err error
		base, err = config.LoadConfig(opts.configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error loading config: %v\n", err)
			return 1
		}
	}
	if err := base.Validate(); err != nil {
		fmt.Fprintf(stderr, "Invalid config: %v\n", err)
		return 1
	}

	if opts.dumpConfig != "" {
		if err := base.SaveConfig(opts.dumpConfig); err != nil {
			fmt.Fprintf(stderr, "Error saving config: %v\n", err)
			return 1
		}
	}

	if flags.NArg() < 1 {
		if opts.dumpConfig != "" {
			return 0
		}
		fmt.Fprintf(stderr, "Usage: csrsim [options] <scenario.yaml>...\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		flags.PrintDefaults()
		return 1
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	failed := 0
	for _, path := range flags.Args() {
		ok, err := runScenario(path, base, opts, logger, stdout, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if !ok {
			failed++
		}
	}

	fmt.Fprintf(stdout, "\n%d scenario(s), %d failed\n", flags.NArg(), failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func runScenario(
	path string,
	base *config.Config,
	opts options,
	logger *slog.Logger,
	stdout, stderr io.Writer,
) (bool, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return false, err
	}

	runnerOpts := []scenario.RunnerOption{scenario.WithLogger(logger)}

	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = progressbar.NewOptions64(int64(s.Cycles),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionSetDescription(s.Name),
			progressbar.OptionShowCount(),
		)
		runnerOpts = append(runnerOpts, scenario.WithCycleHook(func(uint64) {
			_ = bar.Add(1)
		}))
	}

	result, err := scenario.NewRunner(base, runnerOpts...).Run(s)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(stderr)
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}

	report(stdout, path, result)
	return result.Passed(), nil
}

func report(w io.Writer, path string, result *scenario.Result) {
	status := "PASS"
	if !result.Passed() {
		status = "FAIL"
	}

	stats := result.Stats
	fmt.Fprintf(w, "%s %s (%s)\n", status, result.Name, path)
	fmt.Fprintf(w, "  Cycles:   %d\n", result.Cycles)
	fmt.Fprintf(w, "  Retired:  %d\n", result.Retired)
	fmt.Fprintf(w, "  Entries:  %d\n", stats.Entries())
	fmt.Fprintf(w, "    Exceptions:    %d\n", stats.Exceptions)
	fmt.Fprintf(w, "    Interrupts:    %d\n", stats.Interrupts)
	fmt.Fprintf(w, "    Debug entries: %d\n", stats.DebugEntries)
	fmt.Fprintf(w, "    Resumes:       %d\n", stats.Resumes)
	fmt.Fprintf(w, "    Returns:       %d\n", stats.Returns)
	fmt.Fprintf(w, "  Withdrawn requests: %d\n", stats.Withdrawn)
	fmt.Fprintf(w, "  Illegal accesses:   %d\n", stats.IllegalAccesses)
	fmt.Fprintf(w, "  Memory: %d loads, %d stores, %d faults, %d cache hits, %d misses\n",
		result.LSU.Loads, result.LSU.Stores, result.LSU.Faults,
		result.Cache.Hits, result.Cache.Misses)

	for _, f := range result.Failures {
		fmt.Fprintf(w, "  %v\n", f)
	}
}
