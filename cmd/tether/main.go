// Package main provides the tether CLI: tooling for inspecting and
// repairing the reference graphs stored in container files.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
