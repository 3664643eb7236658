// Package main provides the usage-monitor CLI application.
//
// Usage Monitor reads Claude Code conversation logs, groups usage into
// five-hour session blocks, and reports tokens and costs as tables, JSON,
// or a live view that follows the logs as they grow.
package main

import (
	"fmt"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
