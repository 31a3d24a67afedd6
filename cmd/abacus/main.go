// Command abacus runs the engine from the command line against an in-memory
// store seeded from a YAML file. It is meant for operators checking a price
// list or reproducing a calculation, not for serving traffic.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
