// Package main provides the entry point for rvcsr.
// rvcsr is a cycle-level model of a machine-mode CSR file and trap unit.
//
// For the full CLI, use: go run ./cmd/csrsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rvcsr - CSR file and trap controller model")
	fmt.Println("")
	fmt.Println("Usage: csrsim [options] <scenario.yaml>...")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config       Path to controller configuration JSON file")
	fmt.Println("  -dump-config  Write the base configuration as JSON to a path")
	fmt.Println("  -progress     Show a progress bar")
	fmt.Println("  -v            Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/csrsim' for the full CLI, or")
	fmt.Println("'go run ./cmd/csrsoak' for randomized soak runs.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/csrsim' instead.")
	}
}
