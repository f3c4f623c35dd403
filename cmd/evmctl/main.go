// Command evmctl evaluates EVM alerts and KPIs over a CSV export without a database.
package main

import (
	"errors"
	"fmt"
	"os"
)

// Exit codes
const (
	exitSuccess  = 0
	exitCritical = 1 // --fail-on-critical and at least one Critical alert
	exitError    = 2
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if errors.Is(err, errCriticalAlerts) {
			os.Exit(exitCritical)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitError)
	}
	os.Exit(exitSuccess)
}
