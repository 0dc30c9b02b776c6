package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCommand().Execute(); err != nil {
		// Canceled runs (signal during `daemon run`) already logged
		// their shutdown; only real faults get a diagnostic.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "hookd: %v\n", err)
		}
		return 1
	}
	return 0
}
