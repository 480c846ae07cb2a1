// Package main provides cachectl, a CLI for validating cache strategy files,
// inspecting persisted snapshots and simulating workloads.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
