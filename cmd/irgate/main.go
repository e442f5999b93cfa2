// Package main is the entry point for the irgate CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitRestart asks the service manager to restart the daemon.
const exitRestart = 75

func main() {
	err := newRootCmd().ExecuteContext(context.Background())
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "irgate: %v\n", err)
	if errors.Is(err, errRestart) {
		os.Exit(exitRestart)
	}
	os.Exit(1)
}
