package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rshade/tablesync/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // Set by the linker.

func main() {
	os.Exit(run())
}

// run executes the CLI and returns the process exit code.
func run() int {
	err := cli.NewRootCmd(version).Execute()
	if err == nil {
		return 0
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return exitCode(err)
}

// exitCode maps err to a process exit code: an ExitError's own code, 0 for
// nil and 1 otherwise.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}
