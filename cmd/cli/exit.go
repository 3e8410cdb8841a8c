package main

import (
	"fmt"
	"os"

	"github.com/waftester/reportforge/pkg/ui"
)

// exitWithError prints a formatted error message and exits with code.
// Use this instead of ui.PrintError + os.Exit for consistent CLI error handling.
func exitWithError(code int, format string, args ...any) {
	ui.PrintError(fmt.Sprintf(format, args...))
	os.Exit(code)
}

// exitWithUsage prints an error message followed by a usage hint, then
// exits with code.
func exitWithUsage(code int, msg, usage string) {
	ui.PrintError(msg)
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Usage:", usage)
	os.Exit(code)
}
