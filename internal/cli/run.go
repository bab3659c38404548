// Package cli decouples process entry from the patcher implementation.
package cli

import (
	"fmt"
	"io"
)

// Handler is the patcher entrypoint, set by the main package in init so tests
// can drive the full pipeline in-process without forking a binary.
var Handler func(args []string, stdout, stderr io.Writer) int

// Run invokes the configured Handler and returns its exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if Handler == nil {
		fmt.Fprintln(stderr, "internal error: cli handler not configured")
		return 1
	}
	return Handler(args, stdout, stderr)
}
